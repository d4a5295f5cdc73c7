package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightbase/fbo-management/internal/core/events"
	"github.com/flightbase/fbo-management/internal/feecalc"
	"github.com/flightbase/fbo-management/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools for various services",
	Long:  `Start and manage worker pools for background services like fee quoting and event handling.`,
}

// Fee worker command
var feeWorkerCmd = &cobra.Command{
	Use:   "fees",
	Short: "Start fee service worker pool",
	Long:  `Start the fee service worker pool for processing receipt quote jobs`,
	Run: func(cmd *cobra.Command, args []string) {
		startFeeWorker()
	},
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus `,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	apiURL       string
	apiKey       string
)

func startFeeWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	// Use command line flags if provided, otherwise use config values
	feeConfig := feecalc.Config{
		BaseURL:      getStringFlag(apiURL, config.FeeService.BaseURL),
		APIKey:       getStringFlag(apiKey, config.FeeService.APIKey),
		Timeout:      config.FeeService.Timeout,
		MaxWorkers:   getIntFlag(maxWorkers, config.FeeService.MaxWorkers),
		JobQueueSize: jobQueueSize,
	}

	logger.Info("starting fee worker",
		"max_workers", feeConfig.MaxWorkers,
		"job_queue_size", feeConfig.JobQueueSize,
		"api_url", feeConfig.BaseURL)

	client := feecalc.NewClient(feeConfig, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("fee worker is running. Press Ctrl+C to stop.")

	// wait for shutdown signal
	sig := <-sigChan
	logger.Info("received signal, shutting down fee worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		client.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Info("fee worker pool shutdown complete")
	case <-ctx.Done():
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func startEventWorker() {
	_, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe("test.event", func(ctx context.Context, event events.Event) error {
		logger.Info("received test event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	logger.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("event bus is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("received signal, shutting down event bus", "signal", sig)
	logger.Info("event bus shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	feeWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	feeWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	feeWorkerCmd.Flags().StringVar(&apiURL, "api-url", "", "Fee service API URL (overrides config)")
	feeWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "Fee service API key (overrides config)")

	workerCmd.AddCommand(feeWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
