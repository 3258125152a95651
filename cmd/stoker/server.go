package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stokerbuild/stoker/internal/shell/api"
)

// =============================================================================
// Serve Command
// =============================================================================

// ServerError wraps server failures with the operation and exit code.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

func cmdServe(cfg *Config, logger *slog.Logger, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: stoker serve")
		return ExitConfigError
	}

	if err := serve(cfg, logger); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			logger.Error("server error", "error", sErr.Err, "operation", sErr.Op)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitHTTPServerError
	}
	return ExitSuccess
}

func serve(cfg *Config, logger *slog.Logger) error {
	b, d, s, code, err := newBuilder(cfg, logger)
	if err != nil {
		return &ServerError{Op: "serve", Err: err, ExitCode: code}
	}
	defer d.Close()
	defer s.Close()

	handler := api.NewHandler(s, b, logger, ".")

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting build API",
			"address", cfg.Server.Address(),
			"version", Version,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return &ServerError{Op: "ListenAndServe", Err: err, ExitCode: ExitHTTPServerError}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return &ServerError{Op: "Shutdown", Err: err, ExitCode: ExitHTTPServerError}
	}

	return nil
}
