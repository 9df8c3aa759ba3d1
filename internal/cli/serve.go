package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"clinic-agent/handler"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, c, err := opts.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			logger, err := c.Logger()
			if err != nil {
				return err
			}
			svc, err := c.ChatService()
			if err != nil {
				return err
			}
			clinicSvc, err := c.Clinic()
			if err != nil {
				return err
			}
			reg, err := c.Registry()
			if err != nil {
				return err
			}

			router, err := handler.NewRouter(handler.RouterConfig{
				Chat:        svc,
				Specialties: clinicSvc,
				Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newLambdaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda API Gateway function",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, c, err := opts.load()
			if err != nil {
				return err
			}
			svc, err := c.ChatService()
			if err != nil {
				return err
			}
			h, err := handler.NewHandler(svc)
			if err != nil {
				return err
			}
			lambda.Start(h.Handle)
			return nil
		},
	}
}
