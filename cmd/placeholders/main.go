package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/manifest-placeholders/internal/application"
	"github.com/eugenenazirov/manifest-placeholders/internal/config"
	"github.com/eugenenazirov/manifest-placeholders/internal/logging"
)

const (
	resolveCommand = "resolve"
	serveCommand   = "serve"
)

var signalNotify = signal.Notify

func main() {
	command, overrides, err := parseArgs(os.Args[1:])
	kingpin.FatalIfError(err, "")

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to resolve placeholders", zap.Error(err))
	}

	switch command {
	case serveCommand:
		if err := app.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
		shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	default:
		if err := app.WritePlaceholders(os.Stdout); err != nil {
			logger.Fatal("failed to write placeholders", zap.Error(err))
		}
	}
}

func parseArgs(args []string) (string, *config.CLIOverrides, error) {
	kingpinApp := kingpin.New("placeholders", "Manifest placeholders - resolves build secrets from the environment and local.properties")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	propertiesFile := kingpinApp.Flag("properties", "Path to the local.properties file").String()
	logFormat := kingpinApp.Flag("log-format", "Log encoding (json or console)").String()

	resolveCmd := kingpinApp.Command(resolveCommand, "Resolve placeholders and print them").Default()
	output := resolveCmd.Flag("output", "Write placeholders to this file instead of stdout").Short('o').String()
	format := resolveCmd.Flag("format", "Output format (json, yaml or properties)").String()

	serveCmd := kingpinApp.Command(serveCommand, "Serve the resolved placeholders over HTTP")
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	var revealSet bool
	reveal := serveCmd.Flag("reveal", "Return placeholder values in clear text (--no-reveal forces redaction)").IsSetByUser(&revealSet).Bool()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return "", nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *propertiesFile != "" {
		overrides.PropertiesFile = propertiesFile
	}

	if *logFormat != "" {
		overrides.LogFormat = logFormat
	}

	if *output != "" {
		overrides.Output = output
	}

	if *format != "" {
		overrides.Format = format
	}

	if *port != "" {
		overrides.Port = port
	}

	if revealSet {
		overrides.RevealValues = reveal
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return command, overrides, nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
