// Package app assembles registered calyx services into a runnable HTTP
// application: one shared router, one relational store, one logger.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calyxweb/calyx/kit/errors"
	kithttp "github.com/calyxweb/calyx/kit/transport/http"
	"github.com/calyxweb/calyx/routing"
	"github.com/calyxweb/calyx/sqlite"
)

// Config carries the runtime settings of an application.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string
	// DBPath is the sqlite database path. Empty means the default filename
	// in the working directory; sqlite.InMemory is accepted.
	DBPath string
	// ShutdownTimeout bounds graceful shutdown. Zero means 10s.
	ShutdownTimeout time.Duration
}

// App is the application shell. It is built by New, prepared by Open and
// served by Run.
type App struct {
	cfg      Config
	log      *zap.Logger
	store    *sqlite.Store
	ownStore bool
	services []Service

	migrations fs.FS

	reg     *prometheus.Registry
	handler http.Handler
}

// Option configures an App beyond its Config.
type Option func(*App)

// WithLogger replaces the default production logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithStore injects an already-open store instead of letting the app open
// one from Config.DBPath. The caller keeps ownership and must close it.
func WithStore(store *sqlite.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithMigrations sets the sql migration scripts applied at Open.
func WithMigrations(source fs.FS) Option {
	return func(a *App) {
		a.migrations = source
	}
}

// WithServices adds services to this app only, in addition to any
// globally registered ones.
func WithServices(svcs ...Service) Option {
	return func(a *App) {
		a.services = append(a.services, svcs...)
	}
}

// New builds an App from cfg and the globally registered services.
func New(cfg Config, opts ...Option) *App {
	a := &App{
		cfg:      cfg,
		services: registered(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log, _ = zap.NewProduction()
	}
	return a
}

// Open prepares the app: opens the store, applies migrations and mounts
// every service's route sets onto the shared router.
func (a *App) Open(ctx context.Context) error {
	if a.store == nil {
		path := a.cfg.DBPath
		if path == "" {
			path = sqlite.DefaultFilename
		}
		store, err := sqlite.NewStore(path, a.log.With(zap.String("service", "sqlite")))
		if err != nil {
			return err
		}
		a.store = store
		a.ownStore = true
	}

	if a.migrations != nil {
		migrator := sqlite.NewMigrator(a.store, a.log.With(zap.String("service", "sqlite migrations")))
		if err := migrator.Up(ctx, a.migrations); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	res := Resources{Log: a.log, Store: a.store}
	var sets []routing.RouteSet

	for _, svc := range a.services {
		if seen[svc.Name()] {
			return &errors.Error{Code: errors.EConflict, Msg: fmt.Sprintf("service %q registered twice", svc.Name())}
		}
		seen[svc.Name()] = true

		svcSets, err := svc.RouteSets(res)
		if err != nil {
			return &errors.Error{Code: errors.EInvalid, Msg: fmt.Sprintf("service %q failed to build its routes", svc.Name()), Err: err}
		}
		sets = append(sets, svcSets...)

		a.log.Info("Mounted service", zap.String("name", svc.Name()))
	}

	rt, err := routing.Mount(a.log, sets...)
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector())

	reqMetric := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_api_requests_total",
		Help: "Number of http requests received",
	}, []string{"handler", "method", "status"})
	durMetric := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_api_request_duration_seconds",
		Help: "Time taken to respond to HTTP request",
	}, []string{"handler", "method", "status"})
	a.reg.MustRegister(reqMetric, durMetric)

	mux := chi.NewRouter()
	mux.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		kithttp.Logger(a.log),
		kithttp.SetCORS,
		kithttp.Metrics("api", reqMetric, durMetric),
	)

	mux.Get("/health", a.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	mux.Mount("/", rt.Handler())

	a.handler = mux
	return nil
}

// Handler returns the fully assembled http handler. Open must have been
// called.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Store returns the app's store. Open must have been called unless a
// store was injected.
func (a *App) Store() *sqlite.Store {
	return a.store
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.handler == nil {
		return &errors.Error{Code: errors.EInvalid, Msg: "app must be opened before it is run"}
	}

	srv := &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: a.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Listening", zap.String("transport", "http"), zap.String("addr", a.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Close()
		return err
	case <-ctx.Done():
	}

	timeout := a.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return a.Close()
}

// Close releases resources the app owns.
func (a *App) Close() error {
	if a.ownStore && a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	api := kithttp.NewAPI(kithttp.WithLog(a.log))
	api.Respond(w, r, http.StatusOK, map[string]string{
		"name":   "calyx",
		"status": "pass",
	})
}
