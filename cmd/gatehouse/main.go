package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-app/gatehouse/cmd/gatehouse/cli"
	"github.com/gatehouse-app/gatehouse/internal/app"
	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/menu"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/platform/cache"
	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/roles"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/users"
	"github.com/gatehouse-app/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		os.Exit(runServe())
	case "check-role-menus":
		os.Exit(runCheckRoleMenus(args))
	case "generate-resource":
		os.Exit(runGenerateResource(args))
	case "create-superadmin":
		os.Exit(runCreateSuperadmin(args))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, check-role-menus, generate-resource or create-superadmin)\n", command)
		os.Exit(1)
	}
}

// bootstrap holds the dependencies every command needs.
type bootstrap struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func newBootstrap(ctx context.Context) (*bootstrap, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &bootstrap{cfg: cfg, logger: logger, pool: pool, redis: redisClient}, nil
}

func (b *bootstrap) close() {
	if err := b.redis.Close(); err != nil {
		b.logger.Warn("redis close", slog.Any("error", err))
	}
	b.pool.Close()
}

func (b *bootstrap) menuService() (*menu.Service, *menu.Cache, error) {
	entries, err := app.LoadMenuMap(b.cfg.MenuMapPath)
	if err != nil {
		return nil, nil, err
	}
	rbacService := rbac.NewService(rbac.NewRepository(b.pool))
	menuCache := menu.NewCache(b.redis, b.cfg.MenuCacheTTL)
	return menu.NewService(menu.NewRepository(b.pool), b.cfg.MenuStrategy, rbacService, entries, menuCache, b.logger), menuCache, nil
}

func runServe() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot, err := newBootstrap(ctx)
	if err != nil {
		slog.Default().Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer boot.close()
	cfg, logger := boot.cfg, boot.logger

	sessionManager := shared.NewSessionManager(boot.redis, "gatehouse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(boot.pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewRepository(boot.pool))
	engine := rbac.NewEngine(rbacService,
		rbac.WithBypassRoles(cfg.BypassRoles...),
		rbac.WithDecisionHook(func(d rbac.Decision) { metrics.RecordAuthzDecision(d.Allowed) }),
	)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Engine: engine, Logger: logger}
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	auditLog := shared.NewAuditLogger(boot.pool)

	rolesService := roles.NewService(roles.NewRepository(boot.pool))
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware, auditLog)

	usersService := users.NewService(users.NewRepository(boot.pool))
	usersHandler := users.NewHandler(logger, usersService, engine, rbacMiddleware, auditLog)

	menuService, menuCache, err := boot.menuService()
	if err != nil {
		logger.Error("init menu service", slog.Any("error", err))
		return 1
	}
	menuCache.OnLookup(metrics.RecordMenuCache)
	menuHandler := menu.NewHandler(logger, menuService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Pool:               boot.pool,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		MenuHandler:        menuHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return 0
}

func runCheckRoleMenus(args []string) int {
	flags := flag.NewFlagSet("check-role-menus", flag.ExitOnError)
	fix := flags.Bool("fix", false, "remove duplicate rows, keeping the lowest id")
	jsonOut := flags.Bool("json", false, "emit a JSON summary")
	_ = flags.Parse(args)

	ctx := context.Background()
	boot, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check-role-menus: %v\n", err)
		return 1
	}
	defer boot.close()

	menuService, _, err := boot.menuService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "check-role-menus: %v\n", err)
		return 1
	}
	return cli.NewMenuOpsCLI(menuService).CheckRoleMenusCommand(ctx, cli.CheckRoleMenusOptions{
		Fix:        *fix,
		JSONOutput: *jsonOut,
	})
}

func runGenerateResource(args []string) int {
	flags := flag.NewFlagSet("generate-resource", flag.ExitOnError)
	includeOwn := flags.Bool("own", false, "also create view/edit/delete own variants")
	jsonOut := flags.Bool("json", false, "emit a JSON summary")
	_ = flags.Parse(args)
	resource := flags.Arg(0)

	ctx := context.Background()
	boot, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate-resource: %v\n", err)
		return 1
	}
	defer boot.close()

	rolesService := roles.NewService(roles.NewRepository(boot.pool))
	return cli.NewRoleOpsCLI(rolesService).GenerateResourceCommand(ctx, cli.GenerateResourceOptions{
		Resource:   resource,
		IncludeOwn: *includeOwn,
		JSONOutput: *jsonOut,
	})
}

func runCreateSuperadmin(args []string) int {
	flags := flag.NewFlagSet("create-superadmin", flag.ExitOnError)
	email := flags.String("email", "", "account email address")
	name := flags.String("name", "Superadmin", "display name")
	password := flags.String("password", "", "login password")
	_ = flags.Parse(args)

	ctx := context.Background()
	boot, err := newBootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create-superadmin: %v\n", err)
		return 1
	}
	defer boot.close()

	usersService := users.NewService(users.NewRepository(boot.pool))
	rolesService := roles.NewService(roles.NewRepository(boot.pool))
	return cli.NewUserOpsCLI(usersService, rolesService).CreateSuperadminCommand(ctx, cli.CreateSuperadminOptions{
		Email:    *email,
		Name:     *name,
		Password: *password,
	})
}
