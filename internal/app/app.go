// Package app wires together the HTTP server, WebSocket hub, storage, and
// the scheduler. It owns the daemon's lifecycle and is the single source of
// truth for the current operating state.
package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/satwatch/satwatch/internal/capture"
	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/detect"
	"github.com/satwatch/satwatch/internal/events"
	"github.com/satwatch/satwatch/internal/metrics"
	"github.com/satwatch/satwatch/internal/predict"
	"github.com/satwatch/satwatch/internal/scheduler"
	"github.com/satwatch/satwatch/internal/storage"
	"github.com/satwatch/satwatch/internal/tle"
	"github.com/satwatch/satwatch/internal/transmit"
	"github.com/satwatch/satwatch/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *slog.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// App is the top-level daemon process. It manages the HTTP server, the
// WebSocket event hub, storage, and the scheduler.
type App struct {
	log        *slog.Logger
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, ...)

	currentPass atomic.Value // *scheduler.PassInfo, may hold nil

	wsHub      *ws.Hub
	store      *storage.Store
	tleStore   *tle.Store
	predictor  *scheduler.StorePredictor
	scheduler  *scheduler.Runner
	classifier detect.Classifier
	transmit   *transmit.Gate
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	cfg := opts.Cfg

	a := &App{
		log:        opts.Logger,
		cfg:        cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
	}
	a.state.Store("BOOTING")
	a.currentPass.Store((*scheduler.PassInfo)(nil))

	a.store = storage.New(cfg.Data.Database)
	a.tleStore = tle.NewStore(cfg.Predict.TLESources, cfg.Data.Root, cfg.Predict.TLERefreshHours, a.log)
	a.transmit = transmit.NewGate(cfg.Transmit, a.log)

	obs := predict.NewObserver(cfg.Station.Latitude, cfg.Station.Longitude, cfg.Station.Altitude)
	a.predictor = scheduler.NewStorePredictor(a.tleStore, obs, cfg.Station.MinElevation, a.log)

	detector := detect.New(a.pickScorer(), detect.Config{
		TileSize:     cfg.Detect.TileSize,
		TileStride:   cfg.Detect.TileStride,
		NoiseFloorDB: cfg.Detect.NoiseFloorDB,
	}, a.log)

	capturer := capture.New(cfg.SDR, cfg.Data.Recordings, a.wsHub, a.log)
	pipeline := scheduler.NewPipeline(cfg, a.store, detector, a.log)

	a.scheduler = scheduler.New(cfg, a.predictor, capturer, pipeline, a.wsHub, a.log)
	a.scheduler.SetPassCallback(func(pi *scheduler.PassInfo) {
		a.currentPass.Store(pi)
	})

	return a
}

// pickScorer selects the detection scorer once at startup. The classifier is
// a capability: when its command or model is missing the daemon downgrades
// to the threshold scorer and keeps running.
func (a *App) pickScorer() detect.Scorer {
	d := a.cfg.Detect
	if d.ClassifierCmd != "" {
		cl, err := detect.NewCmdClassifier(d.ClassifierCmd, d.ClassifierModel)
		if err == nil {
			a.log.Info("using external classifier", "command", d.ClassifierCmd, "model", d.ClassifierModel)
			a.classifier = cl
			return detect.ClassifierScorer{Classifier: cl, Threshold: d.ClassifierThresh}
		}
		a.log.Warn("classifier unavailable, falling back to threshold scorer", "error", err)
	}
	return detect.ThresholdScorer{MarginDB: d.MarginDB}
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, and the
// scheduler. It blocks until the context is cancelled or the server returns
// an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	for _, dir := range []string{a.cfg.Data.Root, a.cfg.Data.Recordings} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/satellites", a.handleSatellites)
	mux.HandleFunc("/api/tle/info", a.handleTLEInfo)
	mux.HandleFunc("/api/tle/refresh", a.handleTLERefresh)
	mux.HandleFunc("/api/passes", a.handlePasses)
	mux.HandleFunc("/api/passes/next", a.handleNextPass)
	mux.HandleFunc("/api/recordings", a.handleRecordings)
	mux.HandleFunc("/api/candidates", a.handleCandidates)
	mux.HandleFunc("/api/trigger", a.handleTrigger)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.HandleFunc("/api/skip", a.handleSkip)
	mux.HandleFunc("/api/cancel", a.handleCancel)
	mux.HandleFunc("/api/transmit", a.handleTransmit)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", a.wsHub.Handler())

	a.server = &http.Server{
		Addr:              bind,
		Handler:           metrics.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Info("listening", "addr", "http://"+bind)

	// New WebSocket clients get an immediate heartbeat so they know the
	// daemon state without waiting out the heartbeat interval.
	a.wsHub.SetHello(func() any {
		return events.NewHeartbeat(a.state.Load().(string), time.Since(a.startedAt))
	})

	go a.wsHub.Run(ctx)
	a.transition("IDLE")
	go a.heartbeatLoop(ctx)
	go a.scheduler.Run(ctx, a.transition)

	go func() {
		<-ctx.Done()
		a.log.Info("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	err = a.server.Serve(ln)

	if a.classifier != nil {
		_ = a.classifier.Close()
	}
	if cErr := a.store.Close(); cErr != nil {
		a.log.Warn("closing store", "error", cErr)
	}

	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)
	a.wsHub.Publish(events.NewStateTransition(old, newState))
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.Publish(events.NewHeartbeat(a.state.Load().(string), time.Since(a.startedAt)))
		}
	}
}
