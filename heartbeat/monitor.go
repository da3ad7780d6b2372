package heartbeat

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"eldersentry/store"
)

// Metrics is one snapshot of process and host health.
type Metrics struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	CPUTemp       float64 // Celsius; valid only when HasCPUTemp
	HasCPUTemp    bool    // false off the Pi (no thermal sensor)
	DBSizeMB      float64
	LastEventAge  time.Duration // age of the newest event today
	HasLastEvent  bool          // false when no event has arrived today
	TodayEvents   int
	UptimeSeconds uint64
}

// Collect gathers one metrics snapshot. Individual probe failures degrade to
// zero values rather than failing the whole snapshot; a watchdog that dies
// on a missing sensor is worse than one with a blind spot.
func Collect(s *store.Store, dbPath string, now time.Time) Metrics {
	var m Metrics

	// interval 0: delta since the previous call, non-blocking. The first
	// reading of a fresh process may be 0.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		m.DiskPercent = du.UsedPercent
	}
	if uptime, err := host.Uptime(); err == nil {
		m.UptimeSeconds = uptime
	}
	m.CPUTemp, m.HasCPUTemp = cpuTemperature()

	m.DBSizeMB = float64(s.FileSizeBytes(dbPath)) / (1024 * 1024)

	today := now.Format(store.DateLayout)
	if n, err := s.CountEventsBetween(today+"T00:00:00", now.Format(store.TimeLayout)); err == nil {
		m.TodayEvents = n
	}
	if last, err := s.LastEventTime(today + "T00:00:00"); err == nil {
		if lastAt, perr := time.ParseInLocation(store.TimeLayout, last, now.Location()); perr == nil {
			m.LastEventAge = now.Sub(lastAt)
			m.HasLastEvent = true
		}
	}
	return m
}

// cpuTemperature finds the CPU thermal reading when the platform exposes
// one. The Pi reports under cpu_thermal; x86 hosts under coretemp.
func cpuTemperature() (float64, bool) {
	temps, err := sensors.SensorsTemperatures()
	if err != nil {
		return 0, false
	}
	for _, key := range []string{"cpu_thermal", "cpu-thermal", "coretemp"} {
		for _, t := range temps {
			if t.SensorKey == key {
				return t.Temperature, true
			}
		}
	}
	return 0, false
}
