package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Desktop shows a system notification. Used for conditions the user must
// act on themselves, like a missing microphone permission. Failures are
// only logged: notifications are best effort.
func Desktop(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		slog.Debug("desktop notification failed", "err", err)
	}
}
