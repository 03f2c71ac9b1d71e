package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"guardians/internal/config"
	"guardians/internal/controllers"
	"guardians/internal/imetrics"
	"guardians/internal/logging"
	"guardians/internal/provider"
	"guardians/internal/routes"
	"guardians/internal/services"
	"guardians/internal/workerpool"
)

const shutdownTimeout = 5 * time.Second

var serveLog = logging.L("main")

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := imetrics.NewPrometheus(reg)

	prov, err := provider.New(provider.Options{
		Backend:      cfg.Provider.Backend,
		ExeCacheSize: cfg.Provider.ExeCacheSize,
		ProcRoot:     cfg.Provider.ProcRoot,
	})
	if err != nil {
		return err
	}

	var auth *services.AuthService
	if cfg.Auth.Enabled {
		if auth, err = services.NewAuthService(cfg.Auth.SecretKey, keyFile, cfg.TokenExpiry()); err != nil {
			return err
		}
	} else {
		serveLog.Warn("authentication disabled; anyone who can reach the server can control processes")
	}

	pool := workerpool.New(cfg.Actions.Workers, cfg.Actions.QueueSize)
	dispatcher := services.NewDispatcher(prov, pool, cfg.ActionTimeout(), metrics)
	history := services.NewHistoryCollector(services.HostSystem{}, cfg.SampleInterval(), cfg.History.Points)
	monitor := services.NewMonitor(services.NewSampler(prov, metrics), services.NewViewStore(), dispatcher,
		services.MonitorOptions{Interval: cfg.SampleInterval(), History: history})
	hub := services.NewWebSocketHub(monitor, metrics)

	ctl := controllers.New(controllers.Deps{
		Monitor:        monitor,
		Hub:            hub,
		Auth:           auth,
		Metrics:        services.NewMetricsCache(services.HostSystem{}, time.Second),
		History:        history,
		AllowedOrigins: cfg.Security.AllowedOrigins,
	})
	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := routes.NewRouter(routes.RouterOptions{
		Controller:     ctl,
		Auth:           auth,
		Gatherer:       reg,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		IPWhitelist:    cfg.Security.IPWhitelist,
	})
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	if err := monitor.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		serveLog.Info("server listening", "addr", cfg.ListenAddr, "backend", cfg.Provider.Backend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		serveLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		hub.Stop()
		monitor.Shutdown(shutdownCtx)
		return err
	})
	return g.Wait()
}
