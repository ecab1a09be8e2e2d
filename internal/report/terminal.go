package report

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Terminal renders Markdown for display in a terminal, picking a dark or
// light style from the environment.
func Terminal(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("Terminal: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("Terminal: %w", err)
	}
	return out, nil
}
