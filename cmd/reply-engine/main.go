package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/xianyu-tools/ai-reply-engine/internal/api"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
	"github.com/xianyu-tools/ai-reply-engine/internal/conf"
	"github.com/xianyu-tools/ai-reply-engine/internal/data"
	"github.com/xianyu-tools/ai-reply-engine/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()
	fmt.Printf("[Engine] Store: %s\n", cfg.Store.DBPath)

	providers := data.NewProviderRouter(cfg.ProviderTimeout())
	notifier := data.NewNotifier(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.AlertChatID, cfg.Feishu.NotifyPerMinute)
	sink := data.NewReplySink(cfg.Callback.URL, 15*time.Second)

	// Initialize usecase layer
	replyCfg := cfg.ToReplyConfig()
	fmt.Printf("[Engine] Debounce: wait=%v window=%v skip-wait window=%v\n",
		replyCfg.Debounce.Wait, replyCfg.Debounce.AggregationWindow(), replyCfg.Debounce.SkipWaitWindow())

	replyUC := usecase.NewReplyUsecase(
		repos.Conversation,
		repos.Settings,
		providers,
		usecase.NewIntentClassifier(cfg.ToIntentConfig()),
		usecase.NewChatLockRegistry(),
		usecase.NewPromptBuilder(cfg.ToPromptConfig(), cfg.Reply.PromptHistoryTurns),
		replyCfg,
	)
	replyUC.SetNotifier(notifier)
	lifetime, stopReplies := context.WithCancel(context.Background())
	defer stopReplies()
	replyUC.SetLifetime(lifetime)

	usecases := &biz.Usecases{
		Reply:        replyUC,
		Conversation: usecase.NewConversationUsecase(repos.Conversation),
		Settings:     usecase.NewSettingsUsecase(repos.Settings),
		Knowledge:    usecase.NewKnowledgeUsecase(repos.Item),
	}

	// Initialize service layer
	inbound := service.NewInboundService(usecases.Reply, usecases.Knowledge, sink, notifier)
	digest := service.NewDigestRunner(repos.Conversation, notifier, cfg.DigestInterval())
	digest.Start()

	// Initialize HTTP API server
	apiServer := api.NewServer(usecases, inbound, cfg.API.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Starting Xianyu AI reply engine...")
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Printf("[Engine] API server error: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopReplies()
	if err := apiServer.Stop(ctx); err != nil {
		fmt.Printf("[Engine] API shutdown error: %v\n", err)
	}
	digest.Stop()
	inbound.Wait()
}
