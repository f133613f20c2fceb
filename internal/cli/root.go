// Package cli implements the taskflow command surface.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"taskflow/internal/api"
	"taskflow/internal/auth"
	"taskflow/internal/cache"
	"taskflow/internal/chat"
	"taskflow/internal/config"
	"taskflow/internal/storage"
	"taskflow/internal/task"
	"taskflow/internal/tui"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagConfig string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Terminal client for the TaskFlow task manager",
	Long: `taskflow keeps your task list and its AI assistant in one terminal.
Run taskflow with no arguments to open the dashboard; subcommands cover
scripted use and one-off operations.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}

func newSession() (config.Config, *auth.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	session, err := auth.NewSession(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, session, nil
}

// requireSession fails fast when nobody is signed in, before any
// request can bounce with a 401.
func requireSession() (config.Config, *auth.Session, error) {
	cfg, session, err := newSession()
	if err != nil {
		return config.Config{}, nil, err
	}
	if !session.Authenticated() {
		return config.Config{}, nil, fmt.Errorf("not signed in (run `taskflow login` first)")
	}
	return cfg, session, nil
}

func newTaskClient(cfg config.Config, session *auth.Session) *api.Client {
	return api.NewClient(cfg.API, session.Token)
}

// newBridge wires the chat bridge over the agent endpoint, with the
// delayed cache re-fetch as its refresh hook.
func newBridge(cfg config.Config, session *auth.Session, taskCache *cache.Cache) *chat.Bridge {
	sender := chat.NewClient(cfg.API, session.Token)
	delay := time.Duration(cfg.Chat.RefreshDelayMS) * time.Millisecond
	refresh := func() {
		_, _ = taskCache.Fetch(context.Background(), task.ListFilter{})
	}
	return chat.NewBridge(sender, session.UserID(), delay, refresh)
}

// openTranscripts opens the local transcript store. A storage failure
// degrades to an unrecorded session rather than blocking chat.
func openTranscripts(cfg config.Config) (*storage.TranscriptStore, error) {
	home, err := cfg.HomeDir()
	if err != nil {
		return nil, err
	}
	return storage.NewTranscriptStore(filepath.Join(home, "transcripts.db"))
}

func attachRecorder(cfg config.Config, session *auth.Session, bridge *chat.Bridge) func() {
	store, err := openTranscripts(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: chat transcript disabled: %v\n", err)
		return func() {}
	}
	rec, err := storage.NewTurnRecorder(store, session.UserID(), bridge.ConversationID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: chat transcript disabled: %v\n", err)
		_ = store.Close()
		return func() {}
	}
	bridge.SetRecorder(rec)
	return func() { _ = store.Close() }
}

func runDashboard(_ *cobra.Command, _ []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}
	user, _ := session.User()

	taskCache := cache.New(newTaskClient(cfg, session))
	bridge := newBridge(cfg, session, taskCache)
	closeStore := attachRecorder(cfg, session, bridge)
	defer closeStore()

	return tui.Run(taskCache, bridge, user.Email)
}
