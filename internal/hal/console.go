package hal

import (
	"io"
	"strings"
	"sync"
)

// Console is a line-oriented output sink shared by the kernel and threads.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole wraps w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// WriteLineString writes s followed by a newline.
func (c *Console) WriteLineString(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, strings.TrimRight(s, "\n")+"\n")
}
