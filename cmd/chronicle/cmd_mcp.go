package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/HerbHall/chronicle/internal/config"
	"github.com/HerbHall/chronicle/internal/journal"
	"github.com/HerbHall/chronicle/internal/llm"
	"github.com/HerbHall/chronicle/internal/mcp"
	"github.com/HerbHall/chronicle/internal/records"
	"github.com/HerbHall/chronicle/internal/store"
	"github.com/HerbHall/chronicle/pkg/plugin"
)

// runMCPStdio implements `chronicle mcp`: a standalone MCP server over
// stdio for desktop AI clients. It wires the same tools as the HTTP
// module against a directly opened database.
func runMCPStdio(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	v := loadConfigOrExit(*configPath)
	cfg := config.New(v)

	db, err := store.New(v.GetString("database.path"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Stdout carries the MCP protocol; keep logs out of the way.
	logger := zap.NewNop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initPlugin := func(p plugin.Plugin, name string) {
		err := p.Init(ctx, plugin.Dependencies{
			Config: cfg.Sub("plugins." + name),
			Logger: logger,
			Store:  db,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	recordsMod := records.New()
	initPlugin(recordsMod, "records")
	journalMod := journal.New()
	initPlugin(journalMod, "journal")
	llmMod := llm.New()
	initPlugin(llmMod, "llm")

	server := mcp.NewStdioServer(recordsMod, journalMod, llmMod, logger)

	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
