// Command movies serves a movie list screen driven by a skadi store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/on-the-ground/skadi_go/log"
	"github.com/on-the-ground/skadi_go/metrics"
	"github.com/on-the-ground/skadi_go/store"
	"github.com/on-the-ground/skadi_go/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "movies",
		Short:         "Movie list sample backed by a skadi store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type serveConfig struct {
	addr            string
	delay           time.Duration
	cacheBuffer     int
	shutdownTimeout time.Duration
	debug           bool
}

func serveCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the movie screen over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.addr, "addr", "a", ":8080", "Address to listen on")
	cmd.Flags().DurationVar(&cfg.delay, "delay", 2500*time.Millisecond, "Simulated network delay of a catalog load")
	cmd.Flags().IntVar(&cfg.cacheBuffer, "cache-buffer", 64, "Keys per ristretto Get buffer")
	cmd.Flags().DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Grace period for open requests")
	cmd.Flags().BoolVar(&cfg.debug, "debug", false, "Log at debug level")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("movies %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// app holds everything serve wires together.
type app struct {
	store   *movieStore
	catalog *Catalog
	cache   *MovieCache
	server  *server
}

func newApp(ctx context.Context, delay time.Duration, cacheBuffer int, registry *prometheus.Registry) (*app, error) {
	catalog, err := NewCatalog(defaultMovies...)
	if err != nil {
		return nil, fmt.Errorf("fail to seed catalog: %w", err)
	}
	cache, err := NewMovieCache(cacheBuffer)
	if err != nil {
		return nil, fmt.Errorf("fail to get ristretto cache: %w", err)
	}
	tracer, err := tracing.New()
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("fail to set up tracing: %w", err)
	}

	observer := store.Observers(
		metrics.New(
			metrics.WithRegistry(registry),
			metrics.WithConstLabels(prometheus.Labels{"store": "movies"}),
		),
		tracer,
	)

	var initial ViewState = Loading{}
	s := store.New(ctx, initial, reduce,
		handleAction(NewLoadMoviesUseCase(catalog, cache, delay)),
		store.WithObserver(observer),
		store.WithActionWorkers(1),
		store.WithDistinctStates(),
		store.WithErrorHandler(func(err error) {
			log.Eff(ctx, log.LogError, "store error", map[string]interface{}{
				"error": err.Error(),
			})
		}),
	)
	s.PerformAction(LoadMovies{})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return &app{
		store:   s,
		catalog: catalog,
		cache:   cache,
		server:  newServer(ctx, s, catalog, metricsHandler),
	}, nil
}

func (a *app) Close() error {
	a.store.Close()
	err := a.store.Wait()
	a.cache.Close()
	return err
}

func serve(ctx context.Context, cfg serveConfig) error {
	logger, err := newLogger(cfg.debug)
	if err != nil {
		return err
	}
	ctx, endOfLog := log.WithZapLogger(ctx, logger)
	defer endOfLog()

	registry := prometheus.NewRegistry()
	a, err := newApp(ctx, cfg.delay, cfg.cacheBuffer, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Eff(ctx, log.LogWarn, "store stopped with errors", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	go watchTransitions(ctx, a.store)

	httpServer := &http.Server{
		Addr:              cfg.addr,
		Handler:           a.server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Eff(ctx, log.LogWarn, "http shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	log.Eff(ctx, log.LogInfo, "serving movies", map[string]interface{}{
		"addr":    cfg.addr,
		"storeId": a.store.ID(),
	})
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return config.Build()
}

// watchTransitions logs every reduction of s until it stops.
func watchTransitions(ctx context.Context, s *movieStore) {
	transitions := s.Transitions()
	for transition := range transitions.C() {
		log.Eff(ctx, log.LogInfo, "transition", map[string]interface{}{
			"from":      render(transition.From).State,
			"to":        render(transition.To).State,
			"change":    fmt.Sprintf("%T", transition.Change),
			"timestamp": transition.Span.Start(),
			"duration":  transition.Span.Duration().String(),
		})
	}
}
