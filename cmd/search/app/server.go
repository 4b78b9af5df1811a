// Package app provides the search server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/sentinel-search/cmd/search/app/options"
	searchsvc "github.com/kart-io/sentinel-search/internal/search"
	"github.com/kart-io/sentinel-search/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Sentinel Search Service

An answer engine backed by web search and local LLMs.

This server provides:
  - Web search across Wikipedia, DuckDuckGo, Google, Bing and Brave
  - Page fetching, chunking and embedding-based retrieval
  - Cited answers generated by Ollama, with follow-up suggestions
  - Streaming over Server-Sent Events and WebSocket`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(searchsvc.Name),
		app.WithShortDescription("Web search answer engine"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// 第二次收到信号时直接退出。
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
