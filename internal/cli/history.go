package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taskflow/internal/chat"
	"taskflow/internal/tui"
)

var historyCmd = &cobra.Command{
	Use:   "history [TRANSCRIPT]",
	Short: "Browse recorded chat sessions",
	Long: `Without arguments, lists this account's recorded chat sessions.
With a transcript id, replays that session's turns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Bool("delete", false, "delete the given transcript instead of showing it")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}

	store, err := openTranscripts(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 0 {
		metas, err := store.ListTranscripts(session.UserID())
		if err != nil {
			return err
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(metas)
		}
		if len(metas) == 0 {
			fmt.Println("No recorded sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRANSCRIPT\tSTARTED\tLAST ACTIVITY")
		for _, meta := range metas {
			fmt.Fprintf(w, "%s\t%s\t%s\n", meta.ID, meta.CreatedAt, meta.UpdatedAt)
		}
		return w.Flush()
	}

	transcriptID := strings.TrimSpace(args[0])
	if deleteFlag, _ := cmd.Flags().GetBool("delete"); deleteFlag {
		if err := store.DeleteTranscript(transcriptID); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", transcriptID)
		return nil
	}

	turns, err := store.LoadTurns(transcriptID)
	if err != nil {
		return err
	}
	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(turns)
	}
	if len(turns) == 0 {
		fmt.Println("Empty transcript.")
		return nil
	}

	for _, turn := range turns {
		if turn.Role == chat.RoleUser {
			fmt.Printf("you> %s\n", turn.Content)
			continue
		}
		fmt.Println(tui.RenderMarkdown(turn.Content, 80))
		if len(turn.ToolNames) > 0 {
			fmt.Printf("  (tools: %s)\n", strings.Join(turn.ToolNames, ", "))
		}
	}
	return nil
}
