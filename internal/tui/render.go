package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"taskflow/internal/task"
)

// RenderMarkdown renders markdown text using Glamour.
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderTaskLine formats one task list row.
func RenderTaskLine(t task.Task, theme Theme) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}

	title := t.Title
	if t.Completed {
		title = theme.DoneStyle.Render(title)
	}

	marker := priorityMarker(t.Priority, theme)
	line := fmt.Sprintf(" %s %s %-3d %s", box, marker, t.ID, title)
	if len(t.Tags) > 0 {
		names := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			names = append(names, "#"+tag.Name)
		}
		line += " " + theme.MutedStyle.Render(strings.Join(names, " "))
	}
	return line
}

func priorityMarker(priority string, theme Theme) string {
	switch priority {
	case task.PriorityHigh:
		return theme.PriorityHighStyle.Render("●")
	case task.PriorityLow:
		return theme.PriorityLowStyle.Render("●")
	default:
		return theme.PriorityMediumStyle.Render("●")
	}
}
