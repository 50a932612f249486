// Package main provides the lightweight entry point for the vitals triage MCP server.
// This version requires no external databases: SQLite and an in-process profile cache.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitals-triage-server/internal/config"
	"github.com/vitals-triage-server/internal/mcp"
)

func main() {
	// stdout carries the MCP protocol.
	log.SetOutput(os.Stderr)

	cfg := config.LoadLiteConfig()

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("Vitals triage MCP server (lite) stopped")
}
