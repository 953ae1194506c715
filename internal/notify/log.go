package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// logChannel appends alerts to a plain text file, one line per event.
type logChannel struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func newLogChannel(path string) *logChannel {
	return &logChannel{path: path}
}

// NewLogChannel creates an alert log channel, exported for tests.
func NewLogChannel(path string) Channel {
	return newLogChannel(path)
}

func (c *logChannel) Send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFile(); err != nil {
		return err
	}

	line := fmt.Sprintf("%s [%s] %s\n",
		e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		strings.ToUpper(string(e.Kind)), e.Message)

	if _, err := c.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}
	return c.file.Sync()
}

func (c *logChannel) ensureFile() error {
	if c.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create alert log directory: %w", err)
	}
	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open alert log: %w", err)
	}
	c.file = file
	return nil
}

func (c *logChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
