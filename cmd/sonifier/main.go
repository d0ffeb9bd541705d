package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/signalsfoundry/orbit-sonifier/core"
	"github.com/signalsfoundry/orbit-sonifier/internal/audio"
	"github.com/signalsfoundry/orbit-sonifier/internal/feed"
	"github.com/signalsfoundry/orbit-sonifier/internal/logging"
	"github.com/signalsfoundry/orbit-sonifier/internal/observability"
	"github.com/signalsfoundry/orbit-sonifier/internal/sink"
	"github.com/signalsfoundry/orbit-sonifier/kb"
	"github.com/signalsfoundry/orbit-sonifier/timectrl"
)

func main() {
	catalogPath := flag.String("catalog", "configs/catalog.json", "path to the JSON entity catalog")
	presetsPath := flag.String("presets", "configs/presets.json", "path to the JSON preset table")
	presetName := flag.String("preset", "", "preset to apply at startup (empty for defaults)")
	duration := flag.Duration("duration", 0, "total run duration (0 runs until interrupted)")
	tick := flag.Duration("tick", 250*time.Millisecond, "tick interval")
	accel := flag.Float64("accel", 1.0, "simulated seconds per wall-clock second")
	scale := flag.String("scale", "", "scale override, pins the scale and disables mood-following")
	key := flag.String("key", "", "key override (C, C#, D, ...)")
	listenAddr := flag.String("listen-addr", ":9090", "HTTP address for /metrics and /feed")
	kafkaBrokers := flag.String("kafka-brokers", "", "comma-separated Kafka brokers for the event sink (empty disables)")
	kafkaTopic := flag.String("kafka-topic", "", "Kafka topic for admitted events")
	mute := flag.Bool("mute", false, "run headless without audio output")
	seed := flag.Int64("seed", 0, "RNG seed for reproducible runs (0 seeds from the clock)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	log.Info(ctx, "rng seeded", logging.Any("seed", *seed))

	// Catalog + propagation source.
	catalog := kb.NewCatalog()
	source := core.NewSGP4Source()
	f, err := os.Open(*catalogPath)
	if err != nil {
		log.Error(ctx, "failed to open catalog", logging.String("path", *catalogPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	summary, err := core.LoadCatalog(catalog, source, f)
	f.Close()
	if err != nil {
		log.Error(ctx, "failed to load catalog", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "catalog loaded",
		logging.Int("entities", summary.Loaded),
		logging.Int("skipped", len(summary.Skipped)),
	)
	for _, name := range summary.Skipped {
		log.Warn(ctx, "entity skipped, bad element set", logging.String("name", name))
	}

	// Harmonic configuration: presets first, then explicit overrides.
	harmonics := core.NewHarmonicTable()
	preset := loadPreset(log, *presetsPath, *presetName)
	preset.Apply(harmonics)
	followMood := preset.FollowMood
	if *scale != "" {
		harmonics.SetScale(*scale)
		followMood = false
	}
	if *key != "" {
		harmonics.SetKey(*key)
	}

	var player core.Player
	if *mute {
		player = &core.NullPlayer{}
		log.Info(ctx, "audio muted, using null player")
	} else {
		synth, err := audio.NewSynthPlayer(preset.MasterDB, preset.DelayMix)
		if err != nil {
			log.Warn(ctx, "audio device unavailable, using null player", logging.String("error", err.Error()))
			player = &core.NullPlayer{}
		} else {
			player = synth
		}
	}

	engine := core.NewEngine(
		catalog,
		source,
		core.NewDetector(rng),
		harmonics,
		core.NewMoodController(),
		core.NewScheduler(rng),
		player,
		log,
	)
	engine.FollowMood = followMood
	engine.Metrics = collector

	hub := feed.NewHub(log)
	engine.AddObserver(hub.Publish)
	defer hub.Close()

	if *kafkaBrokers != "" {
		eventSink := sink.New(strings.Split(*kafkaBrokers, ","), *kafkaTopic, log)
		engine.AddObserver(eventSink.Publish)
		defer eventSink.Close()
		log.Info(ctx, "event sink enabled", logging.String("brokers", *kafkaBrokers))
	}

	httpSrv := serveHTTP(*listenAddr, collector, hub, log)

	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, *accel)
	tc.AddListener(engine.Tick)

	log.Info(ctx, "starting sonification",
		logging.Any("duration", duration.String()),
		logging.Any("tick", tick.String()),
		logging.Float("accel", *accel),
	)
	done := tc.Start(*duration)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	select {
	case <-done:
		log.Info(ctx, "run complete")
	case <-stopCtx.Done():
		log.Info(ctx, "interrupted, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
}

// loadPreset returns the named preset, or a zero-value default when no
// preset file or name is usable. Missing files are a warning, not a
// fatal error, so the binary still runs from pure flags.
func loadPreset(log logging.Logger, path, name string) core.Preset {
	if name == "" {
		return core.Preset{FollowMood: true}
	}
	f, err := os.Open(path)
	if err != nil {
		log.Warn(context.Background(), "preset file unavailable", logging.String("path", path), logging.String("error", err.Error()))
		return core.Preset{FollowMood: true}
	}
	defer f.Close()

	presets, err := core.LoadPresets(f)
	if err != nil {
		log.Warn(context.Background(), "preset file unreadable", logging.String("path", path), logging.String("error", err.Error()))
		return core.Preset{FollowMood: true}
	}
	p, ok := presets[name]
	if !ok {
		log.Warn(context.Background(), "preset not found, using defaults", logging.String("name", name))
		return core.Preset{FollowMood: true}
	}
	log.Info(context.Background(), "preset applied", logging.String("name", name))
	return p
}

func serveHTTP(addr string, collector *observability.PipelineCollector, hub *feed.Hub, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
	if hub != nil {
		mux.Handle("/feed", hub)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving /metrics and /feed", logging.String("addr", addr))
	return srv
}
