package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/client"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/config"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/database"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/handler"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/middleware"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policyrpc"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository/memstore"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting Approval Policy Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer st.close()

	// People directory: external HTTP API when configured, else the store
	directory := st.people
	if cfg.Directory.URL != "" {
		directory = client.NewDirectoryHTTPClient(client.DirectoryConfig{
			BaseURL:       cfg.Directory.URL,
			Timeout:       cfg.Directory.Timeout,
			Attempts:      cfg.Directory.Attempts,
			RetryDelay:    cfg.Directory.RetryDelay,
			RatePerSecond: cfg.Directory.RatePerSecond,
		}, log)
		log.Info().Str("url", cfg.Directory.URL).Msg("Using external people directory")
	}

	// Rule change notifications
	var events service.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := client.ConnectNATS(cfg.NATS.URL, cfg.Service.Name, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Warn().Err(err).Msg("NATS drain failed")
			}
		}()
		events = client.NewNotificationPublisher(nc, cfg.NATS.SubjectPrefix, log)
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	}

	// Initialize services
	policyService := service.NewApprovalPolicyService(st.rules, st.projects, directory, st.audit, events, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(policyService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if st.ping != nil {
			pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer pingCancel()
			if err := st.ping(pingCtx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	httpHandler.Routes(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS(cfg.Server.CORSOrigins)(h)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server
	grpcHandler := handler.NewGRPCHandler(policyService, log.Logger)

	grpcServer := grpc.NewServer()
	policyrpc.RegisterApprovalPolicyServiceServer(grpcServer, grpcHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(policyrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer) // Enable reflection for debugging

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop gRPC server gracefully
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

// stores bundles the storage backends selected by DB_DRIVER.
type stores struct {
	rules    service.RuleStore
	projects service.ProjectRepository
	people   service.Directory
	audit    service.AuditLog
	ping     func(context.Context) error
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Database.Driver == config.DriverMemory {
		mem := memstore.New()
		if cfg.Database.SeedFile != "" {
			if err := mem.LoadFile(ctx, cfg.Database.SeedFile); err != nil {
				return nil, err
			}
			log.Info().Str("file", cfg.Database.SeedFile).Msg("In-memory store seeded")
		}
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return &stores{rules: mem, projects: mem, people: mem, audit: mem, close: func() {}}, nil
	}

	dbCfg := database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	}

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(dbCfg.URL()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations applied")
	}

	db, err := database.New(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	return &stores{
		rules:    repository.NewApprovalRulesRepository(db),
		projects: repository.NewProjectRepository(db),
		people:   repository.NewPeopleRepository(db),
		audit:    repository.NewApprovalAuditRepository(db),
		ping:     db.Ping,
		close:    db.Close,
	}, nil
}
