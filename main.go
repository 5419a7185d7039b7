package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/mberg/authdeck/internal/api"
	"github.com/mberg/authdeck/internal/config"
	"github.com/mberg/authdeck/internal/session"
	"github.com/mberg/authdeck/internal/store"
	"github.com/mberg/authdeck/internal/ui"
)

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		log.Fatalf("creating state dir: %v", err)
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, err := newLogger(cfg.LogPath)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("opening session store: %v", err)
	}
	defer st.Close()

	gateway := api.NewClient(cfg.APIBaseURL, st, logger.Named("api"))
	manager := session.NewManager(st, gateway, cfg.StaleAfter, logger.Named("session"))

	app := ui.NewApp(manager, gateway)
	p := tea.NewProgram(app, tea.WithAltScreen())
	app.SetProgram(p)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}
