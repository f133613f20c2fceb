package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskflow/internal/task"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE:    runList,
}

var addCmd = &cobra.Command{
	Use:     "add TITLE",
	Aliases: []string{"create"},
	Short:   "Create a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runAdd,
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var doneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Toggle a task's completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Update a task's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var rmCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

func init() {
	listCmd.Flags().Bool("completed", false, "only completed tasks")
	listCmd.Flags().Bool("pending", false, "only pending tasks")
	listCmd.Flags().String("priority", "", "filter by priority (high, medium, low)")
	listCmd.Flags().StringP("search", "s", "", "search title and description")
	listCmd.Flags().String("sort", "", "sort field (created_at, updated_at, priority, title)")
	listCmd.Flags().String("order", "", "sort order (asc, desc)")
	listCmd.Flags().Int("page", 0, "page number")
	listCmd.Flags().IntP("limit", "n", 0, "results per page")

	addCmd.Flags().StringP("description", "d", "", "task description")
	addCmd.Flags().StringP("priority", "p", "", "priority (high, medium, low)")
	addCmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "desc" {
			name = "description"
		}
		return pflag.NormalizedName(name)
	})

	editCmd.Flags().String("title", "", "new title")
	editCmd.Flags().StringP("description", "d", "", "new description")
	editCmd.Flags().StringP("priority", "p", "", "new priority (high, medium, low)")

	rootCmd.AddCommand(listCmd, addCmd, showCmd, doneCmd, editCmd, rmCmd)
}

func parseTaskID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}

	filter := task.ListFilter{}
	if done, _ := cmd.Flags().GetBool("completed"); done {
		v := true
		filter.Completed = &v
	}
	if pending, _ := cmd.Flags().GetBool("pending"); pending {
		if filter.Completed != nil {
			return fmt.Errorf("--completed and --pending are mutually exclusive")
		}
		v := false
		filter.Completed = &v
	}
	if priority, _ := cmd.Flags().GetString("priority"); priority != "" {
		p, err := task.ParsePriority(priority)
		if err != nil {
			return err
		}
		filter.Priority = p
	}
	filter.Search, _ = cmd.Flags().GetString("search")
	filter.SortBy, _ = cmd.Flags().GetString("sort")
	filter.SortOrder, _ = cmd.Flags().GetString("order")
	filter.Page, _ = cmd.Flags().GetInt("page")
	filter.PerPage, _ = cmd.Flags().GetInt("limit")

	page, err := newTaskClient(cfg, session).List(context.Background(), filter)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(page)
	}

	if len(page.Tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tPRI\tTITLE\tTAGS")
	for _, t := range page.Tasks {
		box := " "
		if t.Completed {
			box = "x"
		}
		names := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			names = append(names, tag.Name)
		}
		fmt.Fprintf(w, "%d\t[%s]\t%s\t%s\t%s\n", t.ID, box, t.Priority, t.Title, strings.Join(names, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d of %d tasks (page %d)\n", len(page.Tasks), page.Total, page.Page)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}

	input := task.CreateInput{Title: args[0]}
	input.Description, _ = cmd.Flags().GetString("description")
	if priority, _ := cmd.Flags().GetString("priority"); priority != "" {
		p, err := task.ParsePriority(priority)
		if err != nil {
			return err
		}
		input.Priority = p
	}

	created, err := newTaskClient(cfg, session).Create(context.Background(), input)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(created)
	}
	fmt.Printf("Created task #%d: %s\n", created.ID, created.Title)
	return nil
}

func runShow(_ *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	t, err := newTaskClient(cfg, session).Get(context.Background(), id)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(t)
	}

	status := "pending"
	if t.Completed {
		status = "completed"
	}
	fmt.Printf("#%d %s\n", t.ID, t.Title)
	fmt.Printf("Status:   %s\n", status)
	fmt.Printf("Priority: %s\n", t.Priority)
	if t.Description != "" {
		fmt.Printf("Notes:    %s\n", t.Description)
	}
	if len(t.Tags) > 0 {
		names := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			names = append(names, tag.Name)
		}
		fmt.Printf("Tags:     %s\n", strings.Join(names, ", "))
	}
	fmt.Printf("Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Updated:  %s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func runDone(_ *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	t, err := newTaskClient(cfg, session).ToggleComplete(context.Background(), id)
	if err != nil {
		return err
	}

	if t.Completed {
		fmt.Printf("Completed #%d: %s\n", t.ID, t.Title)
	} else {
		fmt.Printf("Reopened #%d: %s\n", t.ID, t.Title)
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	var patch task.Patch
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		patch.Title = &title
	}
	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		patch.Description = &desc
	}
	if cmd.Flags().Changed("priority") {
		priority, _ := cmd.Flags().GetString("priority")
		p, err := task.ParsePriority(priority)
		if err != nil {
			return err
		}
		patch.Priority = &p
	}
	if patch.IsZero() {
		return fmt.Errorf("nothing to change (set --title, --description or --priority)")
	}

	t, err := newTaskClient(cfg, session).Update(context.Background(), id, patch)
	if err != nil {
		return err
	}
	fmt.Printf("Updated #%d: %s\n", t.ID, t.Title)
	return nil
}

func runRm(_ *cobra.Command, args []string) error {
	cfg, session, err := requireSession()
	if err != nil {
		return err
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	if err := newTaskClient(cfg, session).Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted #%d\n", id)
	return nil
}
