// parley - A terminal client for the parley chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/parley/internal/api"
	sendpkg "github.com/morganforge/parley/internal/chat"
	"github.com/morganforge/parley/internal/config"
	"github.com/morganforge/parley/internal/storage"
	"github.com/morganforge/parley/internal/store"
	chatui "github.com/morganforge/parley/internal/ui/chat"
	"github.com/morganforge/parley/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		flagBackend = flag.String("backend", "", "backend base URL (overrides config)")
		flagModel   = flag.String("model", "", "default model name (overrides config)")
		flagTheme   = flag.String("theme", "", "color theme: dark, light, nord, dracula, solarized, monokai")
		flagConfig  = flag.String("config", "", "path to config file")
		flagWatch   = flag.Bool("watch-config", false, "reload config when the file changes")
		flagVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Printf("parley %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*flagBackend, *flagModel, *flagTheme, *flagConfig, *flagWatch); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(backendURL, modelName, themeName, configPath string, watchConfig bool) error {
	// -------------------------------------------------------------------------
	// Configuration
	// -------------------------------------------------------------------------
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if modelName != "" {
		cfg.Chat.DefaultModel = modelName
	}
	if themeName != "" {
		cfg.UI.Theme = themeName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// -------------------------------------------------------------------------
	// Local persistence
	// -------------------------------------------------------------------------
	var prefs *storage.Prefs
	if path, perr := storage.DefaultPrefsPath(); perr == nil {
		prefs, perr = storage.OpenPrefs(path)
		if perr != nil {
			log.Printf("prefs unavailable: %v", perr)
		}
	}

	var history *storage.History
	if path, herr := storage.DefaultHistoryPath(); herr == nil {
		history, herr = storage.OpenHistory(path)
		if herr != nil {
			log.Printf("history cache unavailable: %v", herr)
		}
	}
	if history != nil {
		defer history.Close()
	}

	// Persisted prefs win over config defaults for session settings.
	theme := cfg.UI.Theme
	chatPrefs := storage.ChatPrefs{
		SelectedModel: cfg.Chat.DefaultModel,
		Temperature:   cfg.Chat.Temperature,
	}
	if prefs != nil {
		var tp storage.ThemePrefs
		if ok, _ := prefs.Get(storage.NamespaceTheme, &tp); ok && tp.Theme != "" {
			theme = tp.Theme
		}
		var cp storage.ChatPrefs
		if ok, _ := prefs.Get(storage.NamespaceChat, &cp); ok {
			if cp.SelectedModel != "" {
				chatPrefs.SelectedModel = cp.SelectedModel
			}
			if cp.Temperature > 0 {
				chatPrefs.Temperature = cp.Temperature
			}
			chatPrefs.SystemPromptID = cp.SystemPromptID
		}
	}

	// -------------------------------------------------------------------------
	// Backend client and state
	// -------------------------------------------------------------------------
	client := api.NewClient(cfg.Backend.BaseURL).WithUserID(cfg.Backend.UserID)

	convs := store.NewConversations(client)
	msgs := store.NewMessages()
	prompts := store.NewPrompts(client)
	errs := store.NewErrors()

	msgs.SetTemperature(chatPrefs.Temperature)
	prompts.Select(chatPrefs.SystemPromptID)

	sender := sendpkg.NewSender(client, convs, msgs, prompts, errs)
	sender.SetModel(chatPrefs.SelectedModel)
	sender.SetVDB(cfg.Chat.VDB)
	sender.SetDBConnect(cfg.Chat.DBConnect)

	// -------------------------------------------------------------------------
	// UI
	// -------------------------------------------------------------------------
	ui := chatui.New(chatui.Deps{
		Client:        client,
		Sender:        sender,
		Conversations: convs,
		Messages:      msgs,
		Prompts:       prompts,
		Errors:        errs,
		History:       history,
		Theme:         styles.NewTheme(theme),
	})

	program := tea.NewProgram(ui, tea.WithAltScreen())

	// Hot reload pushes live settings into the running session.
	if watchConfig {
		path := configPath
		if path == "" {
			path, _ = config.ConfigPathTOML()
		}
		watcher, werr := config.Watch(path, func(next *config.Config) {
			sender.SetVDB(next.Chat.VDB)
			sender.SetDBConnect(next.Chat.DBConnect)
			if next.Chat.DefaultModel != "" {
				sender.SetModel(next.Chat.DefaultModel)
			}
		})
		if werr != nil {
			log.Printf("config watch unavailable: %v", werr)
		} else {
			defer watcher.Close()
		}
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("UI error: %w", err)
	}

	// -------------------------------------------------------------------------
	// Persist session state on exit
	// -------------------------------------------------------------------------
	if prefs != nil {
		chatPrefs.SelectedModel = sender.Model()
		chatPrefs.SystemPromptID = prompts.SelectedID()
		chatPrefs.Temperature = msgs.Temperature()
		if err := prefs.Set(storage.NamespaceChat, chatPrefs); err != nil {
			log.Printf("failed to save prefs: %v", err)
		}
		if err := prefs.Set(storage.NamespaceTheme, storage.ThemePrefs{Theme: theme}); err != nil {
			log.Printf("failed to save prefs: %v", err)
		}
	}
	if history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := history.UpsertConversations(ctx, convs.List()); err != nil {
			log.Printf("failed to cache conversations: %v", err)
		}
		if id := convs.ActiveID(); id != "" {
			if err := history.ReplaceMessages(ctx, id, msgs.List()); err != nil {
				log.Printf("failed to cache messages: %v", err)
			}
		}
	}

	return nil
}
