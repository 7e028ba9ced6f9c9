package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/handlers"
	"github.com/example/farmacia/internal/routes"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	server := fiber.New(fiber.Config{
		AppName:      "Farmacia Cruz Backend",
		ErrorHandler: handlers.ErrorHandler(app.log),
	})

	server.Use(recover.New())
	server.Use(logger.New())

	routes.Register(server, routes.Deps{
		DB:       app.db,
		Config:   app.cfg,
		Payments: app.payments,
		Cart:     app.cart,
		Log:      app.log,

		ResetSender: app.resets,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.log.Info("starting server", zap.String("port", app.cfg.AppPort), zap.String("paypal", app.cfg.PayPal.BaseURL))
		errCh <- server.Listen(":" + app.cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.log.Info("shutting down")
	return server.ShutdownWithTimeout(shutdownTimeout)
}
