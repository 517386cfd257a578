package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/stupiduntilnot/kontempo/internal/chat"
	"github.com/stupiduntilnot/kontempo/internal/config"
	"github.com/stupiduntilnot/kontempo/internal/control"
	"github.com/stupiduntilnot/kontempo/internal/db"
	"github.com/stupiduntilnot/kontempo/internal/dummy"
	modelpkg "github.com/stupiduntilnot/kontempo/internal/model"
	"github.com/stupiduntilnot/kontempo/internal/openai"
)

func main() {
	log.SetPrefix("[server] ")

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	var database *sql.DB
	var processEventID *int64
	if cfg.EventDBPath != "" {
		database, err = db.OpenDB(cfg.EventDBPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer database.Close()

		if err := db.InitSchema(database); err != nil {
			log.Fatalf("failed to init schema: %v", err)
		}

		processEventID = logProcessStarted(database, &cfg)
	}

	modelProvider, err := newModelProvider(&cfg)
	if err != nil {
		log.Fatalf("failed to init model provider: %v", err)
	}
	svc := chat.NewService(modelProvider, newServiceOptions(&cfg, database, processEventID))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           chat.NewHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ModelTimeout*time.Duration(cfg.ModelMaxRetries+1) + 60*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf(
		"server running addr=%s model=%s provider=%s revenue=%s events=%s",
		cfg.ListenAddr,
		cfg.OpenAIModel,
		cfg.ModelProvider,
		cfg.RevenuePolicy,
		emptyAs(cfg.EventDBPath, "off"),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}

	if database != nil {
		logProcessStopped(database, processEventID)
	}
}

// logProcessStarted records the root event of this process and returns its
// id, or nil when it could not be written.
func logProcessStarted(database *sql.DB, cfg *config.ServerConfig) *int64 {
	id, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"role":     "server",
		"pid":      os.Getpid(),
		"provider": cfg.ModelProvider,
		"model":    cfg.OpenAIModel,
		"addr":     cfg.ListenAddr,
	})
	if err != nil {
		log.Printf("failed to log process.started: %v", err)
		return nil
	}
	return &id
}

func logProcessStopped(database *sql.DB, processEventID *int64) {
	if _, err := db.LogEvent(database, processEventID, db.EventProcessStopped, map[string]any{"role": "server"}); err != nil {
		log.Printf("failed to log process.stopped: %v", err)
	}
}

func newModelProvider(cfg *config.ServerConfig) (modelpkg.Provider, error) {
	switch cfg.ModelProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIChatCompURL, cfg.OpenAIModel, cfg.Temperature, cfg.ModelTimeout), nil
	case config.ProviderDummy:
		return dummy.NewProvider(cfg.OpenAIModel, cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

func newServiceOptions(cfg *config.ServerConfig, database *sql.DB, processEventID *int64) chat.Options {
	retry := control.DefaultPolicy()
	retry.MaxRetries = cfg.ModelMaxRetries
	return chat.Options{
		SystemPrompt:    cfg.Persona.SystemPrompt,
		ModelName:       cfg.OpenAIModel,
		ModelLabel:      cfg.ResponseModelLabel,
		HistoryWindow:   cfg.HistoryWindow,
		DefaultRole:     cfg.DefaultUserRole,
		Revenue:         cfg.RevenuePolicy,
		BuyersPerBucket: cfg.BuyersPerBucket,
		Retry:           retry,
		Limiter:         rate.NewLimiter(rate.Limit(cfg.ModelRPS), cfg.ModelBurst),
		Circuit:         control.NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitCooldown),
		Events:          database,
		ProcessEventID:  processEventID,
	}
}

func emptyAs(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
