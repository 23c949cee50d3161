package cmd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/merchantcapital/comcorp-idx-connector/internal/api"
	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = cobra.Command{
	Use:  "serve",
	Long: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		execWithConfig(cmd, serve)
	},
}

func serve(cmd *cobra.Command, config *conf.GlobalConfiguration) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logrus.StandardLogger()
	c := newComponents(config, log)
	if !c.keys.Available() {
		log.Warn("Key material incomplete, encryption and strict verification will fail")
	}
	if !c.consumer.Ready() {
		log.Warn("Consumer endpoint not configured, download requests will fail")
	}

	a := api.NewAPI(config, c.router, c.builder, c.consumer, log, api.WithMetrics(c.metrics))

	addr := net.JoinHostPort(config.API.Host, config.API.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadTimeout:       config.API.ReadTimeout,
		WriteTimeout:      config.API.WriteTimeout,
		ReadHeaderTimeout: 2 * time.Second, // to mitigate a Slowloris attack
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("API server failed to gracefully shut down")
		}
	}()

	log.WithField("verify_fully", c.verifier.VerifiesFully()).Infof("SecureX connector started on: %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("API server failed")
	}
	log.Info("API server shut down")
}
