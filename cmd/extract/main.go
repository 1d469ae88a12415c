// Package main runs a single extraction job in-process and prints the final job view as JSON.
//
//	extract -url https://www.youtube.com/watch?v=... -prompt "funny moments"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/config"
	"github.com/saru2020/ClipsExtractor/internal/app"
	"github.com/saru2020/ClipsExtractor/internal/models"
)

func main() {
	url := flag.String("url", "", "video URL (http or https)")
	prompt := flag.String("prompt", "", "what to look for in the video")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	if *url == "" || *prompt == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		cfg.Log.Development = true
		if logger, err = app.NewLogger(cfg.Log); err != nil {
			fmt.Fprintln(os.Stderr, "logger:", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	// Nothing serves the work directory after exit, so remove it right away.
	cfg.Pipeline.CleanupDelay = 0

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build app:", err)
		os.Exit(1)
	}
	stack.Start()

	tr := stack.Registry.Create(*url, *prompt)
	if err := stack.Dispatcher.Submit(tr); err != nil {
		fmt.Fprintln(os.Stderr, "submit:", err)
		os.Exit(1)
	}

	view := waitTerminal(ctx, stack, tr.ID())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = stack.Shutdown(shutdownCtx)
	if v, err := stack.Registry.View(tr.ID()); err == nil {
		view = v
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view)
	if view.Status != models.JobStatusCompleted {
		os.Exit(1)
	}
}

// waitTerminal polls the job until it is terminal or ctx ends.
func waitTerminal(ctx context.Context, stack *app.App, id string) models.JobView {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		view, err := stack.Registry.View(id)
		if err != nil || view.Status.Terminal() {
			return view
		}
		select {
		case <-ctx.Done():
			return view
		case <-ticker.C:
		}
	}
}
