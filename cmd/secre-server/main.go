package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/secreapi/secre/internal/config"
	"github.com/secreapi/secre/internal/domain/appointment"
	"github.com/secreapi/secre/internal/domain/availability"
	"github.com/secreapi/secre/internal/domain/patient"
	"github.com/secreapi/secre/internal/domain/tenant"
	"github.com/secreapi/secre/internal/platform/auth"
	"github.com/secreapi/secre/internal/platform/db"
	"github.com/secreapi/secre/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "secre-server",
		Short: "Multi-tenant medical appointment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(masterkeyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// adminContext builds the dependencies tenant administration commands need.
func adminContext(ctx context.Context) (*tenant.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	keys := auth.NewManager(auth.NewPGStore(pool), cfg.MasterAPIKey)
	svc := tenant.NewService(tenant.NewRepoPG(pool), keys)
	return svc, pool.Close, nil
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			svc, closeFn, err := adminContext(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			t := &tenant.Tenant{Name: name}
			if err := svc.Create(ctx, t); err != nil {
				return err
			}
			fmt.Printf("Tenant created: %s (%s)\n", t.Name, t.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant name")
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, closeFn, err := adminContext(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			tenants, total, err := svc.List(ctx, 100, 0)
			if err != nil {
				return err
			}
			fmt.Printf("%-38s %-30s %-8s %s\n", "ID", "NAME", "ACTIVE", "CREATED")
			for _, t := range tenants {
				fmt.Printf("%-38s %-30s %-8t %s\n", t.ID, t.Name, t.Active, t.CreatedAt.Format("2006-01-02"))
			}
			fmt.Printf("%d tenant(s)\n", total)
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage tenant API keys",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			name, _ := cmd.Flags().GetString("name")
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			id, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			ctx := context.Background()
			svc, closeFn, err := adminContext(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			key, raw, err := svc.IssueKey(ctx, id, name)
			if err != nil {
				return err
			}
			fmt.Printf("Key issued: %s\n", key.ID)
			fmt.Printf("API key (store it now, it is not shown again): %s\n", raw)
			return nil
		},
	}
	issueCmd.Flags().String("tenant", "", "Tenant id")
	issueCmd.Flags().String("name", "cli", "Key label")
	cmd.AddCommand(issueCmd)

	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, _ := cmd.Flags().GetString("key")
			if keyID == "" {
				return fmt.Errorf("--key is required")
			}

			id, err := uuid.Parse(keyID)
			if err != nil {
				return fmt.Errorf("invalid key id: %w", err)
			}

			ctx := context.Background()
			svc, closeFn, err := adminContext(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.RevokeKey(ctx, id); err != nil {
				return err
			}
			fmt.Println("Key revoked.")
			return nil
		},
	}
	revokeCmd.Flags().String("key", "", "API key id")
	cmd.AddCommand(revokeCmd)

	return cmd
}

func masterkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masterkey",
		Short: "Master key utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a new master API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateMasterKey()
			if err != nil {
				return err
			}
			fmt.Printf("MASTER_API_KEY=%s\n", key)
			return nil
		},
	})

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve timezone")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Credential resolution runs before any tenant scope exists, so the
	// key store works on the shared pool.
	keys := auth.NewManager(auth.NewPGStore(pool), cfg.MasterAPIKey)

	// Repositories over the tenant-scoped connection.
	apptRepo := appointment.NewRepoPG()
	windowRepo := availability.NewWindowRepoPG()
	blockedRepo := availability.NewBlockedRepoPG()
	patientRepo := patient.NewRepoPG()
	tenantRepo := tenant.NewRepoPG(pool)

	apptSvc := appointment.NewService(apptRepo, blockedRepo)
	availSvc := availability.NewService(windowRepo, blockedRepo, apptRepo, loc)
	patientSvc := patient.NewService(patientRepo)
	tenantSvc := tenant.NewService(tenantRepo, keys)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Api-Key", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// Unauthenticated first-run endpoint.
	tenantHandler := tenant.NewHandler(tenantSvc)
	root := e.Group("")
	tenantHandler.RegisterBootstrapRoute(root)

	// Everything under /v1 requires a resolved credential.
	v1 := e.Group("/v1")
	v1.Use(auth.Middleware(keys))
	v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	v1.Use(middleware.Audit(logger))

	// Tenant data routes: tenant key only, with the scoped connection and
	// row-level security bound for the whole request.
	data := v1.Group("")
	data.Use(auth.RequireTenant())
	data.Use(db.ScopeMiddleware(pool))

	appointment.NewHandler(apptSvc).RegisterRoutes(data)
	availability.NewHandler(availSvc).RegisterRoutes(data)
	patient.NewHandler(patientSvc).RegisterRoutes(data)

	// Administration: master key only.
	admin := v1.Group("/admin")
	admin.Use(auth.RequireMaster())
	tenantHandler.RegisterAdminRoutes(admin)

	// Start server with graceful shutdown.
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
