//go:build !darwin

package hotkey

import (
	"context"
	"fmt"
)

// Listener stub for non-darwin builds. The daemon still runs and can be
// driven through speak-ctl; only the global hotkeys are unavailable.
type Listener struct {
	events chan Event
}

func NewListener(pushToTalkKey, toggleKey string) (*Listener, error) {
	return nil, fmt.Errorf("global hotkeys are only supported on macOS")
}

func (l *Listener) Events() <-chan Event { return l.events }

func (l *Listener) Run(ctx context.Context) {}
