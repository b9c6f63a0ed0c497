package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doclane/doclane/internal/api/handlers"
	"github.com/doclane/doclane/internal/chunker"
	"github.com/doclane/doclane/internal/config"
	"github.com/doclane/doclane/internal/database"
	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/jobs"
	"github.com/doclane/doclane/internal/openai"
	"github.com/doclane/doclane/internal/repository"
	"github.com/doclane/doclane/internal/server"
	"github.com/doclane/doclane/internal/service"
	"github.com/doclane/doclane/internal/storage"
	"github.com/doclane/doclane/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the doclane API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := cfg.SentryEnvironment
		if environment == "" {
			environment = "development"
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL, 10, 2)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	passageRepo := repository.NewPassageRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if cfg.InitTenantName != "" {
		if err := bootstrapInitialTenant(ctx, cfg, tenantRepo, apiKeyRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial tenant: %w", err)
		}
	}

	var store service.ObjectStore
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		store = s3Client
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	var documentHandler *handlers.DocumentHandler
	var retrieveHandler *handlers.RetrieveHandler
	var sweepWorker *jobs.Worker

	if cfg.HasOpenAI() {
		modelClient := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: openaiapi.EmbeddingModel(cfg.EmbeddingModel),
			RerankModel:    cfg.RerankModel,
		})

		chunkCfg := chunker.Config{
			TargetTokens:  cfg.ChunkTargetTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
			CharsPerToken: chunker.DefaultConfig().CharsPerToken,
		}
		ingestSvc := service.NewIngestService(docRepo, passageRepo, txRunner, modelClient, store, uuidGen, chunkCfg)

		cache := service.NewRetrievalCache(cfg.CacheTTL)
		engine := service.NewRetrievalEngine(tenantRepo, passageRepo, modelClient, modelClient, cache, logRepo)

		documentHandler = handlers.NewDocumentHandler(ingestSvc)
		retrieveHandler = handlers.NewRetrieveHandler(engine)

		if store != nil {
			sweeper := jobs.NewIngestSweeper(docRepo, ingestSvc, cfg.SweepStale, jobs.DefaultSweepBatch)
			sweepWorker = jobs.NewWorker(sweeper, cfg.SweepInterval)
			go sweepWorker.Start(ctx)
			log.Println("ingest sweeper started")
		}
	} else {
		documentHandler = handlers.NewDocumentHandler(&NoOpIngestionService{})
		retrieveHandler = handlers.NewRetrieveHandler(&NoOpRetriever{})
		log.Println("OPENAI_API_KEY not set: ingestion and retrieval disabled")
	}

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: documentHandler,
		RetrieveHandler: retrieveHandler,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if sweepWorker != nil {
		sweepWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpIngestionService rejects document operations when no embedding
// provider is configured.
type NoOpIngestionService struct{}

func (s *NoOpIngestionService) IngestAsync(ctx context.Context, tenantID, filename string, data []byte, allowedRoles []string) (*domain.Document, error) {
	return nil, fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

func (s *NoOpIngestionService) Reprocess(ctx context.Context, tenantID, documentID string) (*domain.Document, error) {
	return nil, fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

func (s *NoOpIngestionService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	return nil, fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

func (s *NoOpIngestionService) ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*service.DocumentPage, error) {
	return nil, fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

func (s *NoOpIngestionService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	return fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

// NoOpRetriever rejects retrieval when no embedding provider is configured.
type NoOpRetriever struct{}

func (s *NoOpRetriever) Retrieve(ctx context.Context, tenantID, query string, opts service.RetrieveOptions) (*service.RetrievalResult, error) {
	return nil, fmt.Errorf("retrieval not configured: OPENAI_API_KEY required")
}

func bootstrapInitialTenant(ctx context.Context, cfg *config.Config, tenantRepo *repository.TenantRepository, apiKeyRepo *repository.APIKeyRepository) error {
	tenant, err := tenantRepo.GetByName(ctx, cfg.InitTenantName)
	if err != nil && err != domain.ErrTenantNotFound {
		return fmt.Errorf("failed to check existing tenant: %w", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	if tenant == nil {
		tenant, err = authSvc.CreateTenant(ctx, cfg.InitTenantName)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		log.Printf("bootstrap: created tenant '%s' (id: %s)", tenant.Name, tenant.ID)
	} else {
		log.Printf("bootstrap: tenant '%s' already exists (id: %s)", tenant.Name, tenant.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid DOCLANE_INIT_API_KEY format (expected 'dcl_<64 hex chars>')")
		}

		if tenantID, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil && tenantID != "" {
			log.Printf("bootstrap: API key already exists (tenant: %s)", tenantID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, tenant.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
