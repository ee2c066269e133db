package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/xianyu-tools/ai-reply-engine/internal/conf"
	"github.com/xianyu-tools/ai-reply-engine/internal/mcp"
)

// reply-mcp serves the engine's tools over stdio and relays every call to the engine HTTP API.
func main() {
	// Logs go to stderr; stdout carries the MCP stream
	log.SetOutput(os.Stderr)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	engineURL := conf.EngineURLFromEnv()
	server := mcp.NewServer(mcp.NewClient(engineURL), os.Getenv("REPLY_MCP_ACCOUNT_ID"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "[MCP] Serving reply engine tools for %s\n", engineURL)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
