package reminder

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

type Notifier interface {
	Notify(Event) error
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(Event) error { return nil }

// ExecNotifier raises a desktop notification through notify-send or osascript.
type ExecNotifier struct{}

func (ExecNotifier) Notify(ev Event) error {
	title := "dayplan"
	body := fmt.Sprintf("%s at %s", ev.Name, ev.At.Format("15:04"))
	switch runtime.GOOS {
	case "linux":
		return exec.Command("notify-send", title, body).Run()
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(title))
		return exec.Command("osascript", "-e", script).Run()
	default:
		return nil
	}
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
