package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "SPI/pkg/http"
	pkgkafka "SPI/pkg/kafka"
	applogger "SPI/pkg/logger"
)

// Closer releases one resource during shutdown.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// AppOption configures App.
type AppOption func(*App)

// App encapsulates one service's lifecycle: an HTTP server, an optional
// Kafka consumer, and the resources to release on the way out.
type App struct {
	name            string
	logger          *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	handlers        []pkgkafka.MessageHandler
	closers         []Closer
	shutdownTimeout time.Duration
}

// New creates an App around an HTTP server.
func New(name string, logger *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	a := &App{
		name:            name,
		logger:          logger,
		httpServer:      httpServer,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = applogger.Nop()
	}
	return a
}

// WithConsumer runs c with the given handlers next to the HTTP server.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		a.consumer = c
		a.handlers = handlers
	}
}

// WithCloser registers a resource to release on shutdown. Closers run in
// reverse registration order.
func WithCloser(name string, fn func(ctx context.Context) error) AppOption {
	return func(a *App) {
		a.closers = append(a.closers, Closer{Name: name, Close: fn})
	}
}

func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) { a.shutdownTimeout = d }
}

// AddCloser registers a resource after construction.
func (a *App) AddCloser(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, Closer{Name: name, Close: fn})
}

// HTTP returns the app's HTTP server.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// Run starts the app and blocks until SIGINT/SIGTERM, ctx cancellation, or
// an HTTP listen failure, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			a.shutdown()
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.logger.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	errCh := a.httpServer.Start()
	a.logger.Info("service started", applogger.String("service", a.name))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received", applogger.String("service", a.name))
	case err, ok := <-errCh:
		if ok && err != nil {
			a.logger.Error("http server error", applogger.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.shutdown()
	return runErr
}

// shutdown stops intake first, then releases resources in reverse order.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(ctx); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete", applogger.String("service", a.name))
}
