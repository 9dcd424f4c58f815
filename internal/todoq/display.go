package todoq

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/colonyops/todoq/internal/core/todo"
)

// Box width of the inner content area of the task display.
const displayWidth = 64

const (
	boxTop = "╔══════════════════════════════════════════════════════════════════╗"
	boxMid = "╠══════════════════════════════════════════════════════════════════╣"
	boxBot = "╚══════════════════════════════════════════════════════════════════╝"
)

// FormatTask renders the boxed text block shown to the agent when it loads a
// task.
func FormatTask(t todo.Todo) string {
	var b strings.Builder

	b.WriteString(boxTop + "\n")
	b.WriteString(boxLine(center("TASK LOADED", displayWidth)) + "\n")
	b.WriteString(boxMid + "\n")

	b.WriteString(boxLine(formatLine("ID", fmt.Sprintf("#%d", t.ID))) + "\n")
	b.WriteString(boxLine(formatLine("Title", t.Title)) + "\n")
	b.WriteString(boxLine(formatLine("Scope/Priority",
		fmt.Sprintf("%s | %s", t.Scope, t.Priority))) + "\n")

	if t.WorkingDirectory != "" {
		b.WriteString(boxLine(formatLine("Working directory", t.WorkingDirectory)) + "\n")
	}
	if t.EstimatedHours != nil {
		b.WriteString(boxLine(formatLine("Estimated",
			fmt.Sprintf("%.1f hours", *t.EstimatedHours))) + "\n")
	}

	if t.Description != "" {
		b.WriteString(boxMid + "\n")
		b.WriteString(boxLine(pad("DESCRIPTION:", displayWidth)) + "\n")
		for _, line := range wrap(t.Description, displayWidth-2) {
			b.WriteString(boxLine(pad("  "+line, displayWidth)) + "\n")
		}
	}

	if t.Tags != "" {
		b.WriteString(boxMid + "\n")
		b.WriteString(boxLine(formatLine("Tags", t.Tags)) + "\n")
	}

	b.WriteString(boxMid + "\n")
	b.WriteString(boxLine(pad("STATUS: IN PROGRESS", displayWidth)) + "\n")
	b.WriteString(boxBot + "\n\n")

	b.WriteString("Auto mode: after every status change the next todo is loaded.\n")
	b.WriteString("Keep working until the queue is empty.\n")

	return b.String()
}

// FormatEmptyQueue renders the message returned when no ready todo exists.
func FormatEmptyQueue(blocked, inProgress int64) string {
	var b strings.Builder

	b.WriteString("NO MORE TODOS IN THE QUEUE\n")
	b.WriteString("═══════════════════════════════════════\n\n")
	b.WriteString("All tasks have been processed.\n")

	if blocked > 0 {
		fmt.Fprintf(&b, "\n%d task(s) are blocked.\n", blocked)
	}
	if inProgress > 0 {
		fmt.Fprintf(&b, "\n%d task(s) are still in progress.\n", inProgress)
	}

	b.WriteString("\nCreate new tasks or unblock the existing ones.\n")
	b.WriteString("AUTO MODE STOPPED.\n")

	return b.String()
}

func boxLine(content string) string {
	return "║ " + content + " ║"
}

// formatLine renders "label: value" padded to the box width, truncating with
// an ellipsis when too long. Widths are measured in runes so umlauts and
// other multi-byte characters keep the box aligned.
func formatLine(label, value string) string {
	content := label + ": " + value
	if r := []rune(content); len(r) > displayWidth {
		content = string(r[:displayWidth-3]) + "..."
	}
	return pad(content, displayWidth)
}

func pad(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

func center(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	left := (width - len(r)) / 2
	right := width - len(r) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// wrap breaks text into lines no longer than width, on word boundaries where
// possible.
func wrap(s string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
			for utf8.RuneCountInString(line) > width {
				r := []rune(line)
				lines = append(lines, string(r[:width]))
				line = string(r[width:])
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
