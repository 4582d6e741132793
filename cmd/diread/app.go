package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/diread/diread/internal/db"
	"github.com/diread/diread/internal/filestore"
	"github.com/diread/diread/internal/handlers"
	"github.com/diread/diread/internal/logger"
	"github.com/diread/diread/internal/mailer"
	"github.com/diread/diread/internal/repository/postgres"
	"github.com/diread/diread/internal/service/auth"
	"github.com/diread/diread/internal/service/auth/resetmanager"
	"github.com/diread/diread/internal/service/auth/tokenmanager"
	"github.com/diread/diread/internal/service/book"
	"github.com/diread/diread/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize token lifecycle managers
	hasher := auth.BcryptHasher{}
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}, hasher, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	resetManager := resetmanager.New(resetmanager.Config{ResetTTL: c.ResetTTL}, hasher, storage)

	// Initialize book file storage
	files, err := filestore.New(ctx, filestore.Config{
		Provider:  c.StorageProvider,
		LocalPath: c.StoragePath,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Endpoint:  c.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating file storage. Err: %w", err)
	}

	// Initialize services
	mail := mailer.New(mailer.Config{
		Host:        c.SMTPHost,
		Port:        c.SMTPPort,
		Username:    c.SMTPUsername,
		Password:    c.SMTPPassword,
		From:        c.MailFrom,
		FromName:    c.MailFromName,
		FrontendURL: c.FrontendURL,
	}, log)

	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, resetManager, storage, mail, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(storage)
	bookService := book.NewService(book.Config{MaxFileSize: c.MaxFileSize}, storage, files, log)

	mux := handlers.NewRouter(authService, userService, bookService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
