package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netadmind/netadmind/internal/app"
	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/auth"
	"github.com/netadmind/netadmind/internal/dhcp"
	"github.com/netadmind/netadmind/internal/dnszones"
	"github.com/netadmind/netadmind/internal/groups"
	"github.com/netadmind/netadmind/internal/health"
	"github.com/netadmind/netadmind/internal/ipam"
	"github.com/netadmind/netadmind/internal/observability"
	"github.com/netadmind/netadmind/internal/platform/cache"
	"github.com/netadmind/netadmind/internal/platform/db"
	"github.com/netadmind/netadmind/internal/platform/directory"
	"github.com/netadmind/netadmind/internal/svcaccounts"
	"github.com/netadmind/netadmind/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	dir := directory.NewConn(directory.Config{
		PrimaryServer:   cfg.LDAPPrimaryServer,
		SecondaryServer: cfg.LDAPSecondaryServer,
		BindDN:          cfg.LDAPBindDN,
		BindPassword:    cfg.LDAPBindPassword,
		Timeout:         cfg.LDAPTimeout,
		TLSVerify:       cfg.LDAPTLSVerify,
		TLSCACert:       cfg.LDAPTLSCACert,
	}, logger)
	defer dir.Close()

	metrics := observability.NewMetrics()

	recorder := audit.NewRecorder(pool, logger)
	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, cfg.AuditRetentionDays)
	auditHandler := audit.NewHandler(logger, auditService)

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	verifier := auth.NewCredentialVerifier(dir, cfg.LDAPPeopleOU, logger)
	throttle := auth.NewThrottle(redisClient, cfg.LoginMaxAttempts)
	authService := auth.NewService(verifier, codec, throttle, recorder, metrics, logger)
	guard := auth.Middleware{Codec: codec, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, guard)

	passwordPolicy := auth.PasswordPolicy{
		MinLength:      cfg.PasswordMinLength,
		RequireUpper:   cfg.PasswordRequireUpper,
		RequireLower:   cfg.PasswordRequireLower,
		RequireNumber:  cfg.PasswordRequireNumber,
		RequireSpecial: cfg.PasswordRequireSpecial,
	}

	usersService := users.NewService(dir, cfg.LDAPPeopleOU, passwordPolicy, recorder, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	groupsService := groups.NewService(dir, cfg.LDAPGroupsOU, recorder, logger)
	groupsHandler := groups.NewHandler(logger, groupsService, guard)

	svcService := svcaccounts.NewService(dir, cfg.LDAPServiceAccountOU, recorder, logger)
	svcHandler := svcaccounts.NewHandler(logger, svcService, guard)

	dnsService := dnszones.NewService(dir, cfg.LDAPDNSOU, recorder, logger)
	dnsHandler := dnszones.NewHandler(logger, dnsService, guard)

	dhcpService := dhcp.NewService(dir, cfg.LDAPDHCPOU, recorder, logger)
	dhcpHandler := dhcp.NewHandler(logger, dhcpService, guard)

	ipamRepo := ipam.NewPGRepository(pool)
	ipamService := ipam.NewService(ipamRepo, redisClient, recorder, logger)
	ipamHandler := ipam.NewHandler(logger, ipamService, guard)

	healthHandler := health.NewHandler(logger, dir, pool, redisClient)

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		Guard:                 guard,
		AuthHandler:           authHandler,
		UsersHandler:          usersHandler,
		GroupsHandler:         groupsHandler,
		ServiceAccountHandler: svcHandler,
		DNSHandler:            dnsHandler,
		DHCPHandler:           dhcpHandler,
		IPAMHandler:           ipamHandler,
		AuditHandler:          auditHandler,
		HealthHandler:         healthHandler,
		Metrics:               metrics,
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
}
