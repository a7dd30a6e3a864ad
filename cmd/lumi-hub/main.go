package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"zigbee-lumi/internal/capture"
	"zigbee-lumi/internal/command"
	"zigbee-lumi/internal/coordinator"
	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/gateway"
	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/store"
	"zigbee-lumi/internal/web"
	"zigbee-lumi/internal/zcl"
	"zigbee-lumi/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Gateway struct {
		Port string `yaml:"port"`
		Baud int    `yaml:"baud"`
	} `yaml:"gateway"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		ClientID    string `yaml:"client_id"`
		Discovery   bool   `yaml:"discovery"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Health struct {
		CommandTimeout string `yaml:"command_timeout"`
		PingInterval   string `yaml:"ping_interval"`
	} `yaml:"health"`
	Presence struct {
		RegionDebounce string `yaml:"region_debounce"`
	} `yaml:"presence"`
	Capture struct {
		Record string `yaml:"record"`
	} `yaml:"capture"`
	// ConfigureOnInstall runs each driver's configure command on install.
	ConfigureOnInstall bool   `yaml:"configure_on_install"`
	DevicesDir         string `yaml:"devices_dir"`
	ScriptsDir         string `yaml:"scripts_dir"`
}

// validate checks the config. Without a gateway port the hub can only
// replay captures.
func (c *Config) validate(replay bool) error {
	if c.Gateway.Port == "" && !replay {
		return fmt.Errorf("gateway.port is required")
	}
	if c.Gateway.Baud <= 0 {
		return fmt.Errorf("gateway.baud must be positive, got %d", c.Gateway.Baud)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	for key, v := range map[string]string{
		"health.command_timeout":   c.Health.CommandTimeout,
		"health.ping_interval":     c.Health.PingInterval,
		"presence.region_debounce": c.Presence.RegionDebounce,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, v)
		}
	}
	return nil
}

// coordinatorConfig converts the validated durations.
func (c *Config) coordinatorConfig() coordinator.Config {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return coordinator.Config{
		Health: health.Config{
			CommandTimeout: parse(c.Health.CommandTimeout),
			PingInterval:   parse(c.Health.PingInterval),
		},
		RegionDebounce: parse(c.Presence.RegionDebounce),
		Configure:      c.ConfigureOnInstall,
	}
}

func main() {
	cfgPath := flag.String("c", "config.yaml", "path to config file")
	replayPath := flag.String("replay", "", "replay a capture file instead of opening the gateway")
	replaySpeed := flag.Float64("replay-speed", 0, "replay pacing factor; 0 replays without delays")
	flag.Parse()

	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.validate(*replayPath != ""); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("lumi-hub starting", "version", version)

	registry := zcl.NewRegistry(logger, clusters.All()...)

	// Device definitions may add manufacturer clusters to the registry.
	deviceDB, err := coordinator.LoadDeviceDir(cfg.DevicesDir, registry, logger)
	if err != nil {
		logger.Error("load device definitions", "err", err)
		os.Exit(1)
	}
	logger.Info("ZCL registry initialized", "clusters", len(registry.All()), "devices", deviceDB.Len())

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		gw        *gateway.Gateway
		transport driver.Transport
	)
	if *replayPath != "" {
		transport = dryRunTransport{logger: logger.With("component", "replay")}
	} else {
		gw, err = gateway.Open(cfg.Gateway.Port, cfg.Gateway.Baud, logger)
		if err != nil {
			logger.Error("open gateway", "err", err)
			os.Exit(1)
		}
		defer gw.Close()
		transport = gw
	}

	events := coordinator.NewEventBus(logger)
	coord := coordinator.New(transport, db, registry, deviceDB, events, cfg.coordinatorConfig(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := coord.Start(ctx); err != nil {
		logger.Error("start coordinator", "err", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	handler := capture.Handler(func(ctx context.Context, ieee string, msg zcl.Message) {
		if err := coord.HandleMessage(ctx, ieee, msg); err != nil && !errors.Is(err, coordinator.ErrUnknownDevice) {
			logger.Debug("inbound message", "ieee", ieee, "err", err)
		}
	})

	var recorder *capture.Recorder
	if cfg.Capture.Record != "" {
		recorder, err = capture.NewRecorder(cfg.Capture.Record)
		if err != nil {
			logger.Error("open capture", "err", err)
			os.Exit(1)
		}
		defer recorder.Close()
		handler = recorder.Wrap(handler)
		logger.Info("recording inbound traffic", "path", cfg.Capture.Record)
	}

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(coord, cfg, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)
	webServer := web.NewServer(coord, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(coord, cfg, logger)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if gw != nil {
		gw.OnMessage(gateway.Handler(handler))
	} else {
		go replay(runCtx, *replayPath, *replaySpeed, handler, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)
	stopRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	coord.Stop()

	logger.Info("goodbye")
}

// dryRunTransport logs instructions instead of sending them; used while
// replaying a capture.
type dryRunTransport struct {
	logger *slog.Logger
}

func (t dryRunTransport) Send(_ context.Context, ieee string, seq []command.Instruction) error {
	for _, in := range seq {
		t.logger.Info("instruction (not sent)", "ieee", ieee, "instruction", in.String())
	}
	return nil
}

func replay(ctx context.Context, path string, speed float64, h capture.Handler, logger *slog.Logger) {
	r, err := capture.Open(path)
	if err != nil {
		logger.Error("open replay", "err", err)
		return
	}
	defer r.Close()

	start := time.Now()
	n, err := capture.Replay(ctx, r, h, capture.ReplayOptions{Paced: speed > 0, Speed: speed})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("replay", "path", path, "records", n, "err", err)
		return
	}
	logger.Info("replay finished", "path", path, "records", n, "elapsed", time.Since(start))
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Gateway.Baud == 0 {
		cfg.Gateway.Baud = 115200
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "lumi-hub.db"
	}
	if cfg.DevicesDir == "" {
		cfg.DevicesDir = "devices"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "lumi"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "lumi-hub"
	}
	if cfg.Health.CommandTimeout == "" {
		cfg.Health.CommandTimeout = health.DefaultCommandTimeout.String()
	}
	if cfg.Health.PingInterval == "" {
		cfg.Health.PingInterval = "1h"
	}
	if cfg.Presence.RegionDebounce == "" {
		cfg.Presence.RegionDebounce = "1s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
