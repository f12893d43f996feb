package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/talentscout/internal/api"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve evaluations over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting talentscout server", zap.String("version", version))

	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := newStack(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the model gateway", zap.Error(err))
	}

	srv := api.New(st.pipeline, st.guides, api.Options{
		Filters:     config.Filters,
		MaxSessions: config.Server.MaxSessions,
		MaxResumes:  config.Server.MaxResumes,
		RunTimeout:  config.Server.RunTimeout,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      logger,
	})

	if err := srv.ListenAndServe(ctx, config.Server.Addr); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("server stopped")
}
