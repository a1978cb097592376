package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/ai"
	"github.com/atimics/matrixbot-sub000/internal/api"
	"github.com/atimics/matrixbot-sub000/internal/bottools"
	"github.com/atimics/matrixbot-sub000/internal/config"
	"github.com/atimics/matrixbot-sub000/internal/executor"
	"github.com/atimics/matrixbot-sub000/internal/journal"
	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/orchestrator"
	"github.com/atimics/matrixbot-sub000/internal/payload"
	"github.com/atimics/matrixbot-sub000/internal/tool"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer jnl.Close()

	state := world.NewState(world.Limits{
		MaxMessagesPerChannel: cfg.Payload.MaxMessagesPerChannel,
		MaxActionHistory:      cfg.Payload.MaxActionHistory,
	})

	registry := tool.NewRegistry()
	registry.MustRegister(bottools.All()...)

	// Platform clients (Matrix, Farcaster) register their observers here;
	// the core only depends on the observer contract.
	observers := map[string]observer.Observer{}

	var decider ai.Decider
	if cfg.AI.Model != "" {
		client, err := ai.NewClient(ai.Config{
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			BaseURL: cfg.AI.BaseURL,
		})
		if err != nil {
			log.Fatalf("ai client: %v", err)
		}
		decider = client
	} else {
		log.Printf("no ai model configured; every cycle will wait")
	}

	exec := &executor.Executor{
		Registry: registry,
		World:    state,
		Journal:  jnl,
		Tools:    &tool.Context{World: state, Observers: observers},
	}

	orch := &orchestrator.Orchestrator{
		World:    state,
		Registry: registry,
		Decider:  decider,
		Executor: exec,
		Journal:  jnl,
		Limiter:  orchestrator.NewLimiter(cfg.Cycle.MaxCyclesPerHour, cfg.Cycle.ObservationInterval),
		PayloadOptions: payload.Options{
			MaxMessagesPerChannel: cfg.Payload.MaxMessagesPerChannel,
			MaxActionHistory:      cfg.Payload.MaxActionHistory,
			MaxOtherChannels:      cfg.Payload.MaxOtherChannels,
			SnippetLength:         cfg.Payload.SnippetLength,
			IncludeProfiles:       cfg.Payload.IncludeProfiles,
			BotSenderID:           cfg.Bot.SenderID,
			MaxBytes:              cfg.Payload.MaxBytes,
		},
		PrimaryChannelID: cfg.Bot.PrimaryChannel,
		DecideTimeout:    cfg.Cycle.DecideTimeout,
		CollectTimeout:   cfg.Cycle.CollectTimeout,
		InviteTTL:        cfg.Cycle.InviteTTL,
	}
	for _, obs := range observers {
		orch.Observers = append(orch.Observers, obs)
	}

	apiServer := &api.Server{
		World:     state,
		Journal:   jnl,
		Config:    cfg,
		StartedAt: time.Now().UTC(),
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(apiServer.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("botd monitoring api on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- orch.Run(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		log.Printf("shutting down")
		cancel()
		select {
		case <-loopDone:
		case <-time.After(15 * time.Second):
			log.Printf("cycle did not stop in time")
		}
	case err := <-loopDone:
		if err != nil {
			log.Printf("cycle stopped: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
