// Package main runs the FieldSync daemon: it drains the offline sync
// queue against the backend and drives photo upload assemblies.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	stdsync "sync"
	"syscall"
	"time"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/assembly"
	"github.com/restohub/fieldsync/internal/logging"
	"github.com/restohub/fieldsync/internal/store"
	"github.com/restohub/fieldsync/internal/sync"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	var (
		dataDir       = flag.String("data-dir", envOr("FIELDSYNC_DATA_DIR", "./data"), "local database directory")
		baseURL       = flag.String("api-url", envOr("FIELDSYNC_API_URL", "http://localhost:8080/api/v1"), "backend API base URL")
		apiKey        = flag.String("api-key", os.Getenv("FIELDSYNC_API_KEY"), "backend API key")
		storageURL    = flag.String("storage-url", envOr("FIELDSYNC_STORAGE_URL", "http://localhost:8080/storage/upload"), "photo storage upload endpoint")
		drainInterval = flag.Duration("drain-interval", 30*time.Second, "how often to drain the sync queue")
		logLevel      = flag.String("log-level", envOr("FIELDSYNC_LOG_LEVEL", "INFO"), "minimum log level (DEBUG, INFO, WARN, ERROR)")
		offline       = flag.Bool("offline", false, "start in offline mode (queue only, no pushes)")
	)
	flag.Parse()

	logging.Init(os.Stdout, logging.LogLevel(*logLevel))
	logging.Info("FieldSync starting", map[string]interface{}{
		"version":  Version,
		"data_dir": *dataDir,
		"api_url":  *baseURL,
	})

	st, err := store.Open(*dataDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	client := api.NewClient(&api.Config{
		BaseURL: *baseURL,
		APIKey:  *apiKey,
	})

	// One mutex serializes store writes across the queue dispatcher and
	// the upload pipeline.
	mu := &stdsync.Mutex{}

	processor := sync.NewProcessor(st, client, &sync.ProcessorConfig{
		DrainInterval: *drainInterval,
		Mu:            mu,
	})
	manager := assembly.NewQueueManager(st, client, &assembly.Config{
		StorageURL: *storageURL,
		APIKey:     *apiKey,
		Mu:         mu,
	})
	processor.SetAssemblies(manager)
	processor.SetOnline(!*offline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repair anything a previous run left mid-flight before pushing.
	manager.RecoverStranded(ctx)

	processor.Start(ctx)
	processor.Drain(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	cancel()
	processor.Stop()
}

// envOr reads an environment variable with a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
