package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blip-dev/blip/pkg/blip"
	"github.com/blip-dev/blip/pkg/listener"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		protocol string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a BLIP listener with an echo profile handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			l := listener.New(listener.Config{
				AppProtocolID: protocol,
				Logger:        logger.With("component", "blip-listener"),
				CheckOrigin:   func(*http.Request) bool { return true },
			})
			l.Dispatcher().Register("echo", echoHandler)

			srv := &http.Server{
				Addr:              addr,
				Handler:           l.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr, "protocol", protocol)
				errCh <- srv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":4984", "listen address")
	cmd.Flags().StringVar(&protocol, "protocol", "echo", "application protocol ID")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

// echoHandler replies to each request with its own body.
func echoHandler(_ context.Context, req *blip.MessageIn) {
	if req.NoReply() {
		return
	}
	b := blip.NewResponseBuilder(req)
	b.Write(req.Body())
	if err := req.Respond(b); err != nil {
		slog.Error("echo respond failed", "error", err)
	}
}
