package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/yndnr/sfsb-go/internal/beans/cart"
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/infra/buildinfo"
	"github.com/yndnr/sfsb-go/internal/infra/confloader"
	"github.com/yndnr/sfsb-go/internal/infra/shutdown"
	"github.com/yndnr/sfsb-go/internal/infra/tlsroots"
	"github.com/yndnr/sfsb-go/internal/server/config"
	"github.com/yndnr/sfsb-go/internal/server/httpserver"
	"github.com/yndnr/sfsb-go/internal/server/httpserver/handler"
	"github.com/yndnr/sfsb-go/internal/server/localserver"
	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
	"github.com/yndnr/sfsb-go/internal/telemetry/metric"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("sfsbd " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting sfsbd",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	clk := clock.Real()
	metrics := metric.NewRegistry()

	store, err := service.OpenStore(cfg.Container, clk, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if bs, ok := store.(*storage.BadgerStore); ok {
		bs.RegisterMetrics(metrics.Registerer())
	}

	types := bean.NewTypes()
	cart.Register(types)

	destroyed := &destroyCounter{logger: log}
	container, err := service.New(service.Options{
		Settings:  cfg.Container,
		Types:     types,
		Store:     store,
		Destroyer: destroyed,
		Observer:  metrics.Daemon,
		Clock:     clk,
		Logger:    log,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("init container: %w", err)
	}
	metrics.Registerer().MustRegister(metric.NewSessionCollector(func() (int, int) {
		st := container.Sessions()
		return st.Registry.Len(), st.Checksums.Len()
	}))

	shutdownHandler := shutdown.NewHandler(cfg.Shutdown.Timeout, log)

	// Hooks run in reverse order: local socket, HTTP server, certificate
	// watcher, container, config watcher.
	if *configFile != "" {
		watcher, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	if _, err := container.Start(context.Background()); err != nil {
		_ = container.Stop(context.Background())
		return fmt.Errorf("start container: %w", err)
	}
	shutdownHandler.OnShutdown("session container", container.Stop)

	h := handler.New(handler.Config{
		Container: container,
		Clock:     clk,
		Logger:    log,
		Destroyed: destroyed.n.Load,
	})
	var httpOpts []httpserver.Option
	if cfg.HTTP.TLS.Enabled() {
		tlsCfg, keyPair, err := tlsroots.ServerConfig(tlsroots.Options{
			CertFile:     cfg.HTTP.TLS.CertFile,
			KeyFile:      cfg.HTTP.TLS.KeyFile,
			ClientCAFile: cfg.HTTP.TLS.ClientCAFile,
			Logger:       log,
		})
		if err != nil {
			_ = shutdownHandler.Run()
			return fmt.Errorf("init tls: %w", err)
		}
		if err := keyPair.Watch(); err != nil {
			log.Warn("certificate reload disabled", "error", err)
		}
		shutdownHandler.OnShutdown("certificate watcher", func(context.Context) error {
			return keyPair.Stop()
		})
		httpOpts = append(httpOpts, httpserver.WithTLSConfig(tlsCfg))
	}
	httpServer := httpserver.New(cfg.HTTP, httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:      h,
		Metrics:      metrics,
		Logger:       log,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		EnableAdmin:  cfg.HTTP.EnableAdmin,
	}), httpOpts...)
	shutdownHandler.OnShutdown("http server", httpServer.Shutdown)

	if cfg.Local.SocketPath != "" {
		local := localserver.New(cfg.Local.SocketPath, localserver.NewHandler(localserver.HandlerConfig{
			Container: container,
			Shutdown:  shutdownHandler.Trigger,
			Logger:    log,
		}), log)
		shutdownHandler.OnShutdown("local socket", local.Shutdown)
		go func() {
			if err := local.ListenAndServe(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr, "tls", httpServer.TLS())
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchLogLevel applies log.level from path whenever the file changes.
// Container settings are fixed at startup and are not reloaded.
func watchLogLevel(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(changed string) {
		level, err := reloadLogLevel(changed)
		if err != nil {
			log.Warn("config reload failed", "path", changed, "error", err)
			return
		}
		if level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(level); err != nil {
			log.Warn("invalid log level in config", "level", level, "error", err)
			return
		}
		log.Info("log level changed", "level", level)
	})
	w.StartAsync()
	return w, nil
}

func reloadLogLevel(path string) (string, error) {
	l := confloader.NewLoader()
	if err := l.LoadFile(path); err != nil {
		return "", err
	}
	if err := l.LoadEnv(); err != nil {
		return "", err
	}
	level := l.String("log.level")
	if level == "" {
		level = config.DefaultLogLevel
	}
	return level, nil
}

// destroyCounter is the destroy callback of sfsbd. Carts hold no external
// resources, so destruction only needs to be recorded.
type destroyCounter struct {
	logger *slog.Logger
	n      atomic.Int64
}

func (d *destroyCounter) DestroyBeanInstance(ctx context.Context, id string) error {
	d.n.Add(1)
	d.logger.InfoContext(ctx, "session destroyed", "session_id", id)
	return nil
}
