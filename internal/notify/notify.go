package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"openclawpack/internal/events"
)

// Notifier sends system notifications.
type Notifier struct {
	Enabled bool
}

// Send sends a system notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if !n.Enabled {
		return nil
	}

	if runtime.GOOS != "darwin" {
		// Only macOS supported for now
		return nil
	}

	return sendMacOSNotification(title, message)
}

// Watch subscribes the notifier to a bus, surfacing operation completions
// and failures. Send errors are swallowed; notifications are best effort.
func (n *Notifier) Watch(bus *events.Bus) {
	bus.Subscribe(func(evt events.Event) {
		switch evt.Type {
		case events.OperationComplete:
			title, message := FormatOperationComplete(evt.Operation, evt.Message)
			_ = n.Send(title, message)
		case events.OperationFailed:
			title, message := FormatOperationFailed(evt.Operation, evt.Message)
			_ = n.Send(title, message)
		}
	})
}

// sendMacOSNotification uses osascript to display a notification.
func sendMacOSNotification(title, message string) error {
	// Escape quotes in title and message
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// FormatOperationComplete formats a completed-operation notification.
func FormatOperationComplete(operation, detail string) (title, message string) {
	title = fmt.Sprintf("✅ GSD %s complete", operation)
	message = detail
	if message == "" {
		message = fmt.Sprintf("%s finished successfully", operation)
	}
	return title, message
}

// FormatOperationFailed formats a failed-operation notification.
func FormatOperationFailed(operation, detail string) (title, message string) {
	title = fmt.Sprintf("⚠️ GSD %s failed", operation)
	message = detail
	if message == "" {
		message = fmt.Sprintf("%s did not complete", operation)
	}
	return title, message
}
