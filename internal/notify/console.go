package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Console prints notifications as colored lines.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	info    *color.Color
	success *color.Color
	warning *color.Color
}

// NewConsole returns a Console that prints colored lines to w.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:       w,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
	}
}

func (c *Console) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tag string
	switch n.Level {
	case Success:
		tag = c.success.Sprint("✓")
	case Warning:
		tag = c.warning.Sprint("!")
	default:
		tag = c.info.Sprint("i")
	}

	if n.Kind != "" {
		fmt.Fprintf(c.w, "%s [%s] %s\n", tag, n.Kind, n.Message)
		return
	}
	fmt.Fprintf(c.w, "%s %s\n", tag, n.Message)
}
