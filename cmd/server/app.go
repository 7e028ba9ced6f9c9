package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/config"
	"github.com/example/farmacia/internal/database"
	"github.com/example/farmacia/internal/events"
	"github.com/example/farmacia/internal/logging"
	"github.com/example/farmacia/internal/models"
	"github.com/example/farmacia/internal/services"
)

type syncPublisher interface {
	PublishOrderSynced(ctx context.Context, order models.PaymentOrder) error
	Close() error
}

// application holds every long-lived component shared by the commands.
type application struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	payments  *services.PaymentService
	cart      *services.CartService
	publisher syncPublisher
	resets    services.ResetCodeSender
}

func bootstrap() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{
		ServiceName: "farmacia",
		Env:         cfg.AppEnv,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		logging.Sync(log)
		return nil, err
	}

	var publisher syncPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaSyncPublisher(log, cfg.KafkaBrokers, cfg.KafkaSyncTopic)
	} else {
		log.Info("no kafka brokers configured, sync acknowledgements disabled")
	}

	client := services.NewPayPalClient(services.PayPalConfig{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.Secret,
		Timeout:      cfg.HTTPTimeout,
	})
	tokens := services.NewTokenCache(client, cfg.PayPal.TokenMargin)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, cfg.PayPal.BrandName, log)

	var resets services.ResetCodeSender = services.NewLogResetCodeSender(log)
	if telegram.Enabled() {
		resets = telegram
	}

	payments := services.NewPaymentService(
		services.NewPaymentStore(db),
		client,
		tokens,
		services.CheckoutSettings{
			Currency:  cfg.PayPal.Currency,
			BrandName: cfg.PayPal.BrandName,
			ReturnURL: cfg.PayPal.ReturnURL,
			CancelURL: cfg.PayPal.CancelURL,
		},
		log,
		services.WithNotifier(telegram),
		services.WithSyncPublisher(publisher),
	)

	return &application{
		cfg:       cfg,
		log:       log,
		db:        db,
		payments:  payments,
		cart:      services.NewCartService(db),
		publisher: publisher,
		resets:    resets,
	}, nil
}

func (a *application) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("close sync publisher", zap.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("close database", zap.Error(err))
	}
	logging.Sync(a.log)
}
