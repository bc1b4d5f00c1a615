package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/Billy-Davies-2/basket-tracker/internal/auth"
	"github.com/Billy-Davies-2/basket-tracker/internal/clickhouse"
	"github.com/Billy-Davies-2/basket-tracker/internal/config"
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	grpcserver "github.com/Billy-Davies-2/basket-tracker/internal/grpc"
	"github.com/Billy-Davies-2/basket-tracker/internal/handlers"
	"github.com/Billy-Davies-2/basket-tracker/internal/live"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/mocks"
	"github.com/Billy-Davies-2/basket-tracker/internal/outbox"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
)

// upstream is a cross-instance broker we must close on shutdown
type upstream interface {
	pubsub.Upstream
	Close()
}

func main() {
	logger.Init()
	logger.Info("Starting basket tracker")

	cfg := config.Load()
	dev := cfg.Development()

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open store", "driver", cfg.Database.Driver, "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	broker := openBroker(cfg)
	defer broker.Close()
	ps := pubsub.NewWithUpstream(broker)

	var analytics clickhouse.Analytics
	if dev {
		analytics = mocks.NewAnalytics()
	} else {
		client, err := clickhouse.NewClient(cfg.ClickHouse.Addr, cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password)
		if err != nil {
			logger.Warn("ClickHouse unavailable, finalized games will not be replicated", "address", cfg.ClickHouse.Addr, "error", err)
		} else {
			logger.Info("Connected to ClickHouse", "address", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
			analytics = client
		}
	}
	if analytics != nil {
		defer analytics.Close()
	}

	var authProvider auth.AuthProvider
	if dev || !cfg.Authentik.Configured() {
		if !dev {
			logger.Error("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID and AUTHENTIK_CLIENT_SECRET are required outside development")
			log.Fatal("Authentik is not configured")
		}
		logger.Info("Using mock authentication for local development")
		authProvider = auth.NewMockAuth()
	} else {
		authProvider = auth.NewAuthentikAuth(&auth.AuthentikConfig{
			BaseURL:      cfg.Authentik.BaseURL,
			ClientID:     cfg.Authentik.ClientID,
			ClientSecret: cfg.Authentik.ClientSecret,
			RedirectURL:  cfg.Authentik.RedirectURL,
		})
		logger.Info("Using Authentik", "url", cfg.Authentik.BaseURL)
	}

	queue := outbox.New(store, outbox.Options{
		Buffer:       cfg.Outbox.Buffer,
		Retries:      cfg.Outbox.Retries,
		Backoff:      cfg.Outbox.Backoff,
		StoreTimeout: cfg.Outbox.StoreTimeout,
	})
	repo := dal.NewRepository(store)
	manager := live.NewManager(repo, live.Options{
		Outbox:    queue,
		Publisher: ps,
		Analytics: analytics,
	})

	grpcServer := grpc.NewServer()
	grpcserver.RegisterGameSessionServer(grpcServer, grpcserver.NewServer(manager, ps))
	go func() {
		addr := "0.0.0.0:" + cfg.GRPCPort
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen for gRPC", "error", err, "address", addr)
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		logger.Info("gRPC server starting", "address", addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	mux.HandleFunc("/auth/login", authProvider.LoginHandler)
	mux.HandleFunc("/auth/callback", authProvider.CallbackHandler)
	mux.HandleFunc("/auth/logout", authProvider.LogoutHandler)

	api := handlers.NewAPIHandlers(manager, ps, analytics, cfg.BackupDir)
	api.Register(mux, authProvider.RequireAdmin)

	p := &healthChecks{store: store, analytics: analytics, queue: queue, broker: cfg.NATS.URL}
	if dev {
		p.broker = "embedded"
	}
	mux.HandleFunc("/health", p.health)
	mux.HandleFunc("/healthz", p.liveness)
	mux.HandleFunc("/readyz", p.readiness)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", "address", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	if err := manager.Wait(shutdownCtx); err != nil {
		logger.Warn("Analytics replication still pending at shutdown", "error", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Warn("Outbox not fully drained", "error", err, "stats", queue.Stats())
	}
	logger.Info("Stopped", "outbox", queue.Stats())
}

func openStore(cfg config.Config) (dal.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Info("Using in-memory data store")
		return dal.NewMemoryStore(), nil
	case "sqlite":
		s, err := dal.NewSQLiteStore(cfg.Database.SQLiteFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to SQLite database", "file", cfg.Database.SQLiteFile)
		return s, nil
	case "postgres":
		if cfg.Database.URL == "" {
			if cfg.Development() {
				s, err := mocks.NewMockPostgresStore(cfg.Database.SQLiteFile)
				if err != nil {
					return nil, err
				}
				return s, nil
			}
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		s, err := dal.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Postgres database")
		return s, nil
	default:
		return nil, errors.New("unknown DB_DRIVER " + cfg.Database.Driver + " (valid: memory, sqlite, postgres)")
	}
}

// openBroker starts embedded NATS in development and connects to the real
// one otherwise. Development falls back to the in-memory mock.
func openBroker(cfg config.Config) upstream {
	if cfg.Development() {
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATS.Subject
		embedded, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			logger.Warn("Embedded NATS failed, using in-memory pub/sub", "error", err)
			return mocks.NewMockNATSPubSub()
		}
		logger.Info("Embedded NATS server ready", "url", embedded.GetServerURL())
		return embedded
	}

	remote, err := pubsub.NewNATSPubSub(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		logger.Error("Failed to initialize NATS", "error", err, "url", cfg.NATS.URL)
		log.Fatalf("Failed to initialize NATS: %v", err)
	}
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	return remote
}
