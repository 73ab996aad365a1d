package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/server"
)

// Serve keeps an export session open behind the HTTP API.
type Serve struct {
	ExportOptions `embed:""`
	HTTP          server.Config `embed:"" prefix:"http."`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Execute(ctx, logger, rawLogger)
}

func (s *Serve) Execute(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	sess, err := s.open(logger, rawLogger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.exporter.Refresh(ctx); err != nil {
		logger.Warn("Initial refresh failed; waiting for POST /refresh", "error", err)
	}

	srv := server.New(s.HTTP, sess.exporter, sess.hooks, logger)
	logger.Info("Starting export server", "addr", s.HTTP.Addr, "manifest", s.Manifest)
	return srv.ListenAndServe(ctx)
}
