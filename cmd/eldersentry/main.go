// Command eldersentry runs the full monitoring pipeline: sensor ingestion,
// routine learning, anomaly scoring, alert delivery, and scheduling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"eldersentry/alerter"
	"eldersentry/collector"
	"eldersentry/config"
	"eldersentry/heartbeat"
	"eldersentry/schedule"
	"eldersentry/store"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default: config.yml)")
	ingestAddr := flag.String("ingest", "127.0.0.1:8099", "listen address for the sensor ingest endpoint, empty disables")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(*configPath, *ingestAddr, log); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run(configPath, ingestAddr string, log zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var notifier alerter.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier = alerter.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, log)
	} else {
		log.Warn().Msg("no telegram token configured, notifications disabled")
		notifier = alerter.Disabled{}
	}
	mgr := alerter.NewManager(st, cfg, notifier, log)

	proc := collector.NewProcessor(st, log)
	proc.SetBatteryCallback(func(w collector.BatteryWarning) {
		mgr.Broadcast(alerter.RenderBatteryWarning(w.SensorID, w.Battery))
	})

	var hb *heartbeat.Client
	if cfg.Heartbeat.Enabled && cfg.Heartbeat.URL != "" {
		hb = heartbeat.NewClient(cfg.Heartbeat.URL, cfg.Heartbeat.DeviceID, log)
	}

	ingest := newIngestServer(ingestAddr, cfg, proc, log)

	sched := schedule.New(log)
	err = schedule.Register(sched, schedule.Jobs{
		Store:       st,
		Config:      cfg,
		Manager:     mgr,
		Heartbeat:   hb,
		CollectorUp: ingest.up,
		Log:         log,
	})
	if err != nil {
		return err
	}

	ingest.start(log)
	sched.Start()
	log.Info().Int("jobs", sched.JobCount()).Int("sensors", len(cfg.Sensors)).
		Msg("eldersentry running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	sched.Stop()
	ingest.stop()
	return nil
}

// ingestServer is the local HTTP front end for sensor payloads: one POST per
// reading at /ingest/<sensor-id>, body passed to the processor verbatim. The
// upstream bridge (zigbee2mqtt relay or similar) runs outside this process.
type ingestServer struct {
	srv *http.Server
	// enabled flips off when ListenAndServe fails; read concurrently by the
	// heartbeat and watchdog jobs.
	enabled atomic.Bool
}

func newIngestServer(addr string, cfg *config.Config, proc *collector.Processor, log zerolog.Logger) *ingestServer {
	if addr == "" {
		return &ingestServer{}
	}

	sensors := make(map[string]config.Sensor, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		sensors[s.ID] = s
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/{sensor}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("sensor")
		sensor, ok := sensors[id]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown sensor %q", id), http.StatusNotFound)
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		recorded, err := proc.Ingest(sensor, payload, time.Now())
		if err != nil {
			log.Error().Err(err).Str("sensor", id).Msg("ingest failed")
			http.Error(w, "ingest failed", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"recorded":%t}`+"\n", recorded)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok\n")
	})

	is := &ingestServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	is.enabled.Store(true)
	return is
}

func (s *ingestServer) up() bool { return s.enabled.Load() }

func (s *ingestServer) start(log zerolog.Logger) {
	if !s.enabled.Load() {
		log.Warn().Msg("ingest endpoint disabled")
		return
	}
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("ingest endpoint listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ingest endpoint failed")
			s.enabled.Store(false)
		}
	}()
}

func (s *ingestServer) stop() {
	if !s.enabled.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
