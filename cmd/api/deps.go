package main

import (
	"context"

	"agrego/internal/domain/notification"
	"agrego/internal/domain/openfinance"
	"agrego/internal/infrastructure/crypto"
	"agrego/internal/infrastructure/firebase"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/infrastructure/postgres"
	httphandlers "agrego/internal/interfaces/http"
	"agrego/internal/shared/config"
	"agrego/internal/shared/logger"
	"agrego/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	WebhookHandler      *httphandlers.WebhookHandler
	SyncHandler         *httphandlers.SyncHandler
	CredentialHandler   *httphandlers.CredentialHandler
	ConnectionHandler   *httphandlers.ConnectionHandler
	AccountHandler      *httphandlers.AccountHandler
	NotificationHandler *httphandlers.NotificationHandler

	// Sync orchestrator (for the scheduler and the NOTIFY listener)
	SyncService *openfinance.Service

	// Repositories the scheduler job provider needs
	CredentialRepo *postgres.CredentialRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	logger.Get().Infow("connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Repositories
	connectionRepo := postgres.NewConnectionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	billRepo := postgres.NewBillRepository(db)
	investmentRepo := postgres.NewInvestmentRepository(db)
	loanRepo := postgres.NewLoanRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db, encryptor)
	webhookLogRepo := postgres.NewWebhookLogRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Push delivery is optional; without Firebase credentials the
	// notification service still registers tokens.
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcmClient, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken)
		if err != nil {
			logger.Get().Warnw("firebase unavailable, push notifications disabled", "error", err)
		} else {
			messenger = fcmClient
		}
	}
	notificationService := notification.NewService(notificationRepo, messenger)

	texts, err := messages.Load(cfg.Firebase.MessagesFile)
	if err != nil {
		logger.Get().Warnw("notification texts unavailable, using defaults", "error", err)
		texts = &messages.Messages{}
	}

	// Provider client stack: one shared transport so the provider-wide
	// rate limit holds across every user's client.
	transport := ofclient.NewTransport(ofclient.TransportConfig{
		BaseURL:    cfg.Provider.BaseURL,
		Timeout:    cfg.Provider.Timeout,
		RateLimit:  cfg.Provider.RateLimit,
		RateWindow: cfg.Provider.RateWindow,
	})
	factory := ofclient.NewFactory(transport, credentialRepo)

	// Syncers and orchestrator
	syncService := openfinance.NewService(
		factory,
		connectionRepo,
		credentialRepo,
		openfinance.NewAccountSyncService(accountRepo),
		openfinance.NewTransactionSyncService(accountRepo, transactionRepo),
		openfinance.NewBillSyncService(accountRepo, billRepo),
		openfinance.NewInvestmentSyncService(accountRepo, investmentRepo),
		openfinance.NewLoanSyncService(loanRepo),
		notificationService,
		texts,
	)

	return &Dependencies{
		DB: db,
		WebhookHandler: httphandlers.NewWebhookHandler(
			syncService,
			connectionRepo,
			webhookLogRepo,
			cfg.Webhook.Secret,
			cfg.Webhook.RetryWindow,
			cfg.Webhook.MaxAttempts,
		),
		SyncHandler:         httphandlers.NewSyncHandler(syncService),
		CredentialHandler:   httphandlers.NewCredentialHandler(credentialRepo),
		ConnectionHandler:   httphandlers.NewConnectionHandler(connectionRepo),
		AccountHandler:      httphandlers.NewAccountHandler(accountRepo),
		NotificationHandler: httphandlers.NewNotificationHandler(notificationService),
		SyncService:         syncService,
		CredentialRepo:      credentialRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
