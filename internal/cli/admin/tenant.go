package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doclane/doclane/internal/config"
	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/repository"
	"github.com/doclane/doclane/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  "Create, list, and tune tenants",
	}

	cmd.AddCommand(TenantCreateCmd())
	cmd.AddCommand(TenantListCmd())
	cmd.AddCommand(TenantSettingsCmd())

	return cmd
}

func TenantCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new tenant",
		Long:  "Create a new tenant with the specified name and default retrieval settings",
		Args:  cobra.ExactArgs(1),
		RunE:  runTenantCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, nil, uuidGen)

	tenant, err := authSvc.CreateTenant(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         tenant.ID,
			"name":       tenant.Name,
			"created_at": tenant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Tenant created: %s (%s)\n", tenant.Name, tenant.ID)
	}

	return nil
}

func TenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		Long:  "List all tenants in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)

	tenants, err := tenantRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(tenants))
		for i, tenant := range tenants {
			data[i] = map[string]interface{}{
				"id":         tenant.ID,
				"name":       tenant.Name,
				"settings":   tenant.Settings.Normalize(),
				"created_at": tenant.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(tenants) == 0 {
			fmt.Println("No tenants found")
			return nil
		}
		fmt.Println("Tenants:")
		for _, tenant := range tenants {
			fmt.Printf("  %s: %s (created: %s)\n", tenant.ID, tenant.Name, tenant.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func TenantSettingsCmd() *cobra.Command {
	var (
		topK            int
		overfetch       int
		hybrid          bool
		rerank          bool
		rerankThreshold float64
		docCap          int
	)

	cmd := &cobra.Command{
		Use:   "settings <id-or-name>",
		Short: "Show or update a tenant's retrieval settings",
		Long:  "Show a tenant's retrieval settings, or update the ones passed as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantSettings(cmd, args[0], outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Default number of results per retrieval")
	cmd.Flags().IntVar(&overfetch, "overfetch", 0, "Candidate window fetched per search method")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Enable hybrid (vector + keyword) search")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Enable conditional reranking")
	cmd.Flags().Float64Var(&rerankThreshold, "rerank-threshold", 0, "Top-score threshold below which rerank triggers")
	cmd.Flags().IntVar(&docCap, "doc-cap", 0, "Maximum results per document")

	return cmd
}

func runTenantSettings(cmd *cobra.Command, tenantRef, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)

	tenantID, err := resolveTenantID(ctx, tenantRepo, tenantRef)
	if err != nil {
		return err
	}

	tenant, err := tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	settings := tenant.Settings.Normalize()
	changed := false
	if cmd.Flags().Changed("top-k") {
		settings.RetrieverTopK, _ = cmd.Flags().GetInt("top-k")
		changed = true
	}
	if cmd.Flags().Changed("overfetch") {
		settings.Overfetch, _ = cmd.Flags().GetInt("overfetch")
		changed = true
	}
	if cmd.Flags().Changed("hybrid") {
		settings.HybridEnabled, _ = cmd.Flags().GetBool("hybrid")
		changed = true
	}
	if cmd.Flags().Changed("rerank") {
		settings.RerankEnabled, _ = cmd.Flags().GetBool("rerank")
		changed = true
	}
	if cmd.Flags().Changed("rerank-threshold") {
		settings.RerankThreshold, _ = cmd.Flags().GetFloat64("rerank-threshold")
		changed = true
	}
	if cmd.Flags().Changed("doc-cap") {
		settings.DocCap, _ = cmd.Flags().GetInt("doc-cap")
		changed = true
	}

	if changed {
		uuidGen := &service.DefaultUUIDGenerator{}
		authSvc := service.NewAuthService(tenantRepo, nil, uuidGen)
		if err := authSvc.UpdateTenantSettings(ctx, tenantID, settings); err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
		settings = settings.Normalize()
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":               tenantID,
			"name":             tenant.Name,
			"retriever_top_k":  settings.RetrieverTopK,
			"overfetch":        settings.Overfetch,
			"hybrid_enabled":   settings.HybridEnabled,
			"rerank_enabled":   settings.RerankEnabled,
			"rerank_threshold": settings.RerankThreshold,
			"doc_cap":          settings.DocCap,
			"updated":          changed,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Settings for tenant %s (%s):\n", tenant.Name, tenantID)
		fmt.Printf("  retriever_top_k:  %d\n", settings.RetrieverTopK)
		fmt.Printf("  overfetch:        %d\n", settings.Overfetch)
		fmt.Printf("  hybrid_enabled:   %t\n", settings.HybridEnabled)
		fmt.Printf("  rerank_enabled:   %t\n", settings.RerankEnabled)
		fmt.Printf("  rerank_threshold: %.2f\n", settings.RerankThreshold)
		fmt.Printf("  doc_cap:          %d\n", settings.DocCap)
		if changed {
			fmt.Println("Settings updated")
		}
	}

	return nil
}

func resolveTenantID(ctx context.Context, tenantRepo *repository.TenantRepository, tenantRef string) (string, error) {
	if _, err := uuid.Parse(tenantRef); err == nil {
		tenant, err := tenantRepo.GetByID(ctx, tenantRef)
		if err != nil {
			return "", fmt.Errorf("tenant not found: %s", tenantRef)
		}
		return tenant.ID, nil
	}

	tenant, err := tenantRepo.GetByName(ctx, tenantRef)
	if err != nil {
		if err == domain.ErrTenantNotFound {
			return "", fmt.Errorf("tenant not found: %s", tenantRef)
		}
		return "", err
	}
	return tenant.ID, nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
