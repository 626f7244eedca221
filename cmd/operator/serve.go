package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egendata/operator/internal/cache"
	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/events"
	"github.com/egendata/operator/internal/handlers"
	"github.com/egendata/operator/internal/jwks"
	"github.com/egendata/operator/internal/messages"
	"github.com/egendata/operator/internal/middleware"
	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/router"
	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/signature"
	"github.com/egendata/operator/internal/tokens"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_date": buildDate,
		"host":       cfg.Operator.Host,
	}).Info("Starting operator...")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, "up"); err != nil {
			return err
		}
	}

	redisClient := cache.Connect(&cfg.Redis)
	defer redisClient.Close()

	eventClient := events.NewClient(&cfg.Events, logger)
	defer eventClient.Close()

	handler, err := buildHandler(cfg, db, cache.NewConsentRequests(redisClient, logger), eventClient, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("Starting HTTP server...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go logStats(ctx, db)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server exited gracefully")
	return nil
}

// buildHandler wires storage, services and handlers into the router.
func buildHandler(cfg *config.Config, db *database.DB, requests *cache.ConsentRequests, eventClient *events.Client, logger *logrus.Logger) (http.Handler, error) {
	operatorKey, err := tokens.NewOperatorKey(&cfg.Operator)
	if err != nil {
		return nil, err
	}
	registry, err := newPDSRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	accountDAO := dao.NewAccountDAO(db)
	serviceDAO := dao.NewServiceDAO(db)
	connectionDAO := dao.NewConnectionDAO(db)
	permissionDAO := dao.NewPermissionDAO(db)
	consentDAO := dao.NewConsentDAO(db)

	keys := jwks.NewClient(cfg.JWKS.Timeout, logger)
	issuer := tokens.NewIssuer(operatorKey, cfg.Operator.Host)
	access := tokens.NewAccessTokens(cfg.Operator.AccessTokenSecret)
	verifier := tokens.NewMessageVerifier(operatorKey, keys, accountDAO, serviceDAO, logger)
	unsafe := cfg.Operator.IsUnsafe()

	accountService := service.NewAccountService(accountDAO, serviceDAO, consentDAO, registry, access, eventClient, logger)
	clientService := service.NewClientService(serviceDAO, unsafe, logger)
	handshakeService := service.NewHandshakeService(connectionDAO, verifier, keys, issuer, eventClient, logger)
	dataService := service.NewDataService(permissionDAO, registry, issuer, logger)
	consentService := service.NewConsentService(requests, consentDAO, serviceDAO, access, eventClient, logger)
	legacyDataService := service.NewLegacyDataService(consentDAO, registry, access, logger)
	healthService := service.NewHealthService(map[string]service.HealthChecker{
		"postgres": db,
		"redis":    requests,
	}, logger)

	messageRegistry, err := messages.NewDefaultRegistry(messages.Services{
		Accounts:   accountService,
		Clients:    clientService,
		Handshakes: handshakeService,
		Data:       dataService,
	})
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(promRegistry)

	h := &router.Handlers{
		Message: handlers.NewMessageHandler(messages.NewDispatcher(verifier, messageRegistry, metrics, logger)),
		Account: handlers.NewAccountHandler(accountService),
		Client:  handlers.NewClientHandler(clientService),
		Consent: handlers.NewConsentHandler(consentService),
		Data:    handlers.NewDataHandler(legacyDataService),
		PDS:     handlers.NewPDSHandler(service.NewPDSService(registry, logger)),
		Health:  handlers.NewHealthHandler(healthService),
		JWKS:    handlers.NewJWKSHandler(operatorKey),
	}

	return router.SetupRouter(h, router.Options{
		Verifier: signature.NewVerifier(operatorKey, keys, serviceDAO, unsafe, logger),
		Metrics:  metrics,
		Gatherer: promRegistry,
		Logger:   logger,
	}), nil
}

// newPDSRegistry registers every backend the configuration enables.
// Dropbox needs OAuth client credentials and S3 a bucket; memory is only
// offered outside production.
func newPDSRegistry(cfg *config.Config, logger *logrus.Logger) (*pds.Registry, error) {
	var providers []pds.Provider

	if cfg.PDS.Dropbox.ClientID != "" {
		d := cfg.PDS.Dropbox
		providers = append(providers, pds.NewDropboxProvider(d.ClientID, d.ClientSecret, d.RedirectURL, d.Host))
	}
	if cfg.PDS.S3.Bucket != "" {
		s := cfg.PDS.S3
		providers = append(providers, pds.NewS3Provider(s.Region, s.Endpoint, s.Bucket))
	}
	if cfg.PDS.Local.Root != "" {
		local, err := pds.NewLocalProvider(cfg.PDS.Local.Root)
		if err != nil {
			return nil, err
		}
		providers = append(providers, local)
	}
	if cfg.Operator.IsUnsafe() {
		providers = append(providers, pds.NewMemoryProvider())
	}

	registry, err := pds.NewRegistry(providers...)
	if err != nil {
		return nil, err
	}
	for _, p := range registry.Providers() {
		logger.WithField("provider", p.Name).Info("PDS provider registered")
	}
	return registry, nil
}

func logStats(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.LogStats()
		}
	}
}
