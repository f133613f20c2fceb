package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"taskflow/internal/cache"
	"taskflow/internal/chat"
	"taskflow/internal/config"
	"taskflow/internal/task"
	"taskflow/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the AI assistant in a REPL",
	Long: `Opens a line-based chat with the AI assistant. The assistant can add,
complete, update and delete tasks; the local task list re-syncs after
each mutation. Type /tasks to print the list, /quit to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}

	taskCache := cache.New(newTaskClient(cfg, session))
	bridge := newBridge(cfg, session, taskCache)
	closeStore := attachRecorder(cfg, session, bridge)
	defer closeStore()

	ctx := context.Background()
	if _, err := taskCache.Fetch(ctx, task.ListFilter{}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load tasks: %v\n", err)
	}

	// Announce the post-mutation re-sync so the REPL user sees that
	// the list moved while they read the reply.
	taskCache.SetOnChange(func() {
		if !taskCache.Loading() {
			fmt.Printf("\r✓ task list synced (%d tasks)\n", len(taskCache.Tasks()))
		}
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     historyFilePath(cfg),
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()

	fmt.Println(tui.RenderMarkdown(chat.Greeting, 80))

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/tasks":
			printTaskList(taskCache)
			continue
		}

		reply, ok := bridge.Send(ctx, text)
		if !ok {
			continue
		}
		fmt.Println(tui.RenderMarkdown(reply.Content, 80))
	}
}

func printTaskList(taskCache *cache.Cache) {
	tasks := taskCache.Tasks()
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return
	}
	theme := tui.DarkTheme()
	for _, t := range tasks {
		fmt.Println(tui.RenderTaskLine(t, theme))
	}
}

func historyFilePath(cfg config.Config) string {
	home, err := cfg.HomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "chat_history")
}
