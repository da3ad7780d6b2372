package heartbeat

import (
	"fmt"
	"strings"
	"time"

	"eldersentry/store"
)

// Watchdog thresholds.
const (
	cpuTempWarning  = 80.0 // Celsius
	diskWarningPct  = 90.0
	ramWarningPct   = 85.0
	dbSizeWarningMB = 500.0 // large for the Pi's SD card
)

// Check is one health probe verdict.
type Check struct {
	Name    string
	Healthy bool
	Message string
}

// Status is the outcome of a full watchdog pass.
type Status struct {
	Checks    []Check
	Timestamp string
}

// AllHealthy reports whether every check passed.
func (s Status) AllHealthy() bool {
	for _, c := range s.Checks {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// Warnings returns the failing checks.
func (s Status) Warnings() []Check {
	var out []Check
	for _, c := range s.Checks {
		if !c.Healthy {
			out = append(out, c)
		}
	}
	return out
}

func checkCPUTemp(m Metrics) Check {
	if !m.HasCPUTemp {
		return Check{Name: "cpu_temp", Healthy: true, Message: "No CPU temperature sensor available."}
	}
	if m.CPUTemp >= cpuTempWarning {
		return Check{Name: "cpu_temp", Healthy: false,
			Message: fmt.Sprintf("CPU temperature is too high: %.1f°C", m.CPUTemp)}
	}
	return Check{Name: "cpu_temp", Healthy: true,
		Message: fmt.Sprintf("CPU temperature is normal: %.1f°C", m.CPUTemp)}
}

func checkDisk(m Metrics) Check {
	if m.DiskPercent >= diskWarningPct {
		return Check{Name: "disk", Healthy: false,
			Message: fmt.Sprintf("Disk usage is too high: %.0f%%", m.DiskPercent)}
	}
	return Check{Name: "disk", Healthy: true,
		Message: fmt.Sprintf("Disk usage is normal: %.0f%%", m.DiskPercent)}
}

func checkRAM(m Metrics) Check {
	if m.MemoryPercent >= ramWarningPct {
		return Check{Name: "ram", Healthy: false,
			Message: fmt.Sprintf("RAM usage is too high: %.0f%%", m.MemoryPercent)}
	}
	return Check{Name: "ram", Healthy: true,
		Message: fmt.Sprintf("RAM usage is normal: %.0f%%", m.MemoryPercent)}
}

// checkCollector probes only the ingestion link itself; the "no events for
// hours" condition belongs to the real-time silence checks.
func checkCollector(collectorUp bool) Check {
	if !collectorUp {
		return Check{Name: "collector", Healthy: false, Message: "Sensor collector connection is down!"}
	}
	return Check{Name: "collector", Healthy: true, Message: "Sensor collector connection is up."}
}

func checkDatabase(m Metrics) Check {
	if m.DBSizeMB >= dbSizeWarningMB {
		return Check{Name: "database", Healthy: false,
			Message: fmt.Sprintf("Database is too large: %.1f MB", m.DBSizeMB)}
	}
	return Check{Name: "database", Healthy: true,
		Message: fmt.Sprintf("Database size is normal: %.1f MB", m.DBSizeMB)}
}

// RunHealthChecks evaluates every probe against one snapshot. Pure.
func RunHealthChecks(m Metrics, collectorUp bool, now time.Time) Status {
	return Status{
		Checks: []Check{
			checkCPUTemp(m),
			checkDisk(m),
			checkRAM(m),
			checkCollector(collectorUp),
			checkDatabase(m),
		},
		Timestamp: now.Format(store.TimeLayout),
	}
}

// FormatWatchdogAlert renders the failing checks as a caregiver warning.
// Empty string when everything is healthy.
func FormatWatchdogAlert(status Status) string {
	warnings := status.Warnings()
	if len(warnings) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("⚙️ <b>System health warning</b>\n")
	collectorDown := false
	for _, w := range warnings {
		fmt.Fprintf(&b, "\n⚠️ %s", w.Message)
		if w.Name == "collector" {
			collectorDown = true
		}
	}
	if collectorDown {
		b.WriteString("\n\n💡 This may also be caused by an internet outage.")
	}
	b.WriteString("\n\nℹ️ Please check the system.")
	return b.String()
}
