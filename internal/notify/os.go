package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// CommandExecutor runs a system command. Swappable for tests.
type CommandExecutor interface {
	Execute(name string, args ...string) error
}

type realExecutor struct{}

func (realExecutor) Execute(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// osChannel sends alerts through the platform's notification system.
type osChannel struct {
	cfg      OSConfig
	executor CommandExecutor
	platform string
}

func newOSChannel(cfg OSConfig, executor CommandExecutor) *osChannel {
	if executor == nil {
		executor = realExecutor{}
	}
	return &osChannel{cfg: cfg, executor: executor, platform: runtime.GOOS}
}

// NewOSChannel creates a desktop notification channel with a custom executor,
// exported for tests.
func NewOSChannel(cfg OSConfig, executor CommandExecutor) Channel {
	return newOSChannel(cfg, executor)
}

func (c *osChannel) Send(e Event) error {
	if !c.shouldSend(e.Kind) {
		return nil
	}

	switch c.platform {
	case "linux":
		return c.executor.Execute("notify-send", e.Title, e.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(e.Message), escapeAppleScript(e.Title))
		return c.executor.Execute("osascript", "-e", script)
	default:
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
}

func (c *osChannel) shouldSend(k Kind) bool {
	switch k {
	case KindMailArrived:
		return c.cfg.OnMail
	case KindHubOffline, KindHubOnline:
		return c.cfg.OnConnectivity
	case KindTest:
		return true
	default:
		return true
	}
}

func (c *osChannel) Close() error { return nil }

// escapeAppleScript escapes backslashes and double quotes so event text
// cannot break out of the osascript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
