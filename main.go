// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"warmdelights/internal/admin"
	"warmdelights/internal/analytics"
	"warmdelights/internal/backend"
	"warmdelights/internal/catalog"
	"warmdelights/internal/cleanup"
	"warmdelights/internal/config"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
	"warmdelights/internal/middleware"
	"warmdelights/internal/security"
	"warmdelights/internal/storage"
	"warmdelights/internal/storefront"
	"warmdelights/internal/whatsapp"
)

const (
	sessionSweepEvery = 5 * time.Minute
	csrfSweepEvery    = 15 * time.Minute
	limiterSweepEvery = 10 * time.Minute
	limiterIdle       = 30 * time.Minute
	startupTimeout    = 10 * time.Second
)

type App struct {
	addr          string
	handler       http.Handler
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Step 2: Setup logging
	if err := logger.SetupLogger(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment loaded. Logger ready.")
	config.LogCurrentEnvironment(cfg)

	// Step 3: Persistent store
	db, err := storage.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		logger.LogFatal("Failed to open database: %v", err)
	}
	defer db.Close()

	// Step 4: Collaborators and catalog
	client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	menu := loadMenu(cfg, client)
	newStore := sessionStores(cfg)

	// Step 5: Storefront and dashboard
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirror := gallery.NewLocalMirror(db)
	events := analytics.NewLog(db, storage.KeyEvents, analytics.PersistentEventCap)
	sessions := storefront.NewSessions(storefront.Deps{
		Menu:                menu,
		Link:                whatsapp.Link{Number: cfg.WhatsAppNumber},
		ClearCartOnCheckout: cfg.ClearCartOnCheckout,
		BaseURL:             cfg.BackendURL,
		Remote:              client,
		Views:               client,
		Contacts:            client,
		Pusher:              client,
		Mirror:              mirror,
		Events:              events,
		NewStore:            newStore,
		GalleryTTL:          cfg.GalleryTTL,
		IdleAfter:           cfg.SessionIdle,
	})

	adminVolatile := storage.NewMemoryStore()
	adminSession := admin.NewSession(db, adminVolatile, nil)
	dashboard := admin.NewDashboard(admin.Options{
		Session:      adminSession,
		Backend:      client,
		Remote:       client,
		Mirror:       mirror,
		Volatile:     adminVolatile,
		Persistent:   db,
		Events:       events,
		Pusher:       client,
		Invalidator:  sessions,
		DefaultToken: cfg.AdminToken,
		GalleryTTL:   cfg.AdminGalleryTTL,
		Location:     logger.Location(),
	})

	csrf := security.NewCSRFStore()
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	server := storefront.NewServer(storefront.ServerOptions{
		Sessions:      sessions,
		CSRF:          csrf,
		Limiter:       limiter,
		AllowedOrigin: cfg.AllowedOrigin,
		SecureCookies: cfg.SecureCookies(),
		Admin:         adminSession,
		Dashboard:     dashboard,
		AdminToken:    cfg.AdminToken,
		Validator:     client,
		Backend:       client,
		DB:            db,
	})

	// Step 6: Start background tasks
	routine := cleanup.New(maintenanceTasks(cfg, sessions, csrf, limiter, events)...)
	routine.Start(ctx)

	// Step 7: Run server
	app := &App{addr: cfg.Address(), handler: server.Routes()}
	app.Run()

	cancel()
	routine.Wait()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	sessions.CloseAll(shutdownCtx)
	dashboard.Activities().Wait()
}

// loadMenu picks the catalog: a configured file, else the bundled menu, in
// either case overridden by the backend's menu when it serves one.
func loadMenu(cfg config.Config, client *backend.Client) *catalog.Catalog {
	menu := catalog.Default()
	if cfg.CatalogFile != "" {
		loaded, err := catalog.Load(cfg.CatalogFile)
		if err != nil {
			logger.LogFatal("Failed to load catalog: %v", err)
		}
		menu = loaded
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	items, err := client.ListMenu(ctx)
	if err != nil || len(items) == 0 {
		logger.LogInfo("Using local catalog (%d items); backend menu unavailable: %v", len(menu.Items()), err)
		return menu
	}
	remote, err := catalog.New(items)
	if err != nil {
		logger.LogWarn("Backend menu rejected, using local catalog: %v", err)
		return menu
	}
	logger.LogInfo("Using backend menu (%d items)", len(items))
	return remote
}

// sessionStores returns the per-session volatile store factory. Redis is
// used when configured and reachable.
func sessionStores(cfg config.Config) func(string) storage.Store {
	if cfg.SessionStore != "redis" {
		return nil
	}
	rc := storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.LogWarn("Redis at %s unreachable, keeping visitor sessions in memory: %v", cfg.RedisAddr, err)
		return nil
	}
	logger.LogInfo("Visitor sessions stored in Redis at %s", cfg.RedisAddr)
	return func(id string) storage.Store {
		return storage.NewRedisStore(rc, id, cfg.SessionIdle)
	}
}

// maintenanceTasks prunes events through the same Log the storefront appends
// to, so the two never overwrite each other.
func maintenanceTasks(cfg config.Config, sessions *storefront.Sessions, csrf *security.CSRFStore, limiter *middleware.RateLimiter, events *analytics.Log) []cleanup.Task {
	return []cleanup.Task{
		{Name: "idle sessions", Every: sessionSweepEvery, Run: func(ctx context.Context) (int, error) {
			return sessions.Sweep(ctx), nil
		}},
		{Name: "csrf tokens", Every: csrfSweepEvery, Run: func(context.Context) (int, error) {
			return csrf.CleanExpiredTokens(), nil
		}},
		{Name: "rate limiter", Every: limiterSweepEvery, Run: func(context.Context) (int, error) {
			return limiter.Sweep(limiterIdle), nil
		}},
		{Name: "gallery refresh", Every: cfg.GalleryRefreshInterval, Run: func(ctx context.Context) (int, error) {
			sessions.InvalidateGalleries(ctx)
			return 0, nil
		}},
		{Name: "event retention", Run: func(ctx context.Context) (int, error) {
			return events.Prune(ctx, time.Now().Add(-cfg.EventRetention))
		}},
	}
}

// Run starts the HTTP server and blocks until a shutdown signal.
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	<-stop
	logger.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// Handler wraps the router with connection tracking and a request timeout.
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.handler
	handler = a.trackConnections(handler)
	handler = http.TimeoutHandler(handler, 25*time.Second, `{"code":"timeout","message":"Request timed out"}`)
	return handler
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}
