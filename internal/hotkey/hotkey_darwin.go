//go:build darwin

package hotkey

import (
	"context"
	"fmt"

	"golang.design/x/hotkey"
)

// Listener registers the two recording hotkeys with the OS and turns
// their key events into Events. Register must run on the process main
// thread on macOS; cmd/speak-daemon arranges that with mainthread.Init.
type Listener struct {
	ptt    *hotkey.Hotkey
	toggle *hotkey.Hotkey
	events chan Event
}

func NewListener(pushToTalkKey, toggleKey string) (*Listener, error) {
	pttKey, err := keyFor(pushToTalkKey)
	if err != nil {
		return nil, fmt.Errorf("push-to-talk key: %w", err)
	}
	togKey, err := keyFor(toggleKey)
	if err != nil {
		return nil, fmt.Errorf("toggle key: %w", err)
	}

	mods := []hotkey.Modifier{hotkey.ModOption}
	l := &Listener{
		ptt:    hotkey.New(mods, pttKey),
		toggle: hotkey.New(mods, togKey),
		events: make(chan Event, 8),
	}

	if err := l.ptt.Register(); err != nil {
		return nil, fmt.Errorf("register push-to-talk hotkey: %w", err)
	}
	if err := l.toggle.Register(); err != nil {
		l.ptt.Unregister()
		return nil, fmt.Errorf("register toggle hotkey: %w", err)
	}

	return l, nil
}

func (l *Listener) Events() <-chan Event { return l.events }

// Run forwards OS key events until the context is cancelled.
func (l *Listener) Run(ctx context.Context) {
	defer l.ptt.Unregister()
	defer l.toggle.Unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ptt.Keydown():
			l.events <- PushToTalkDown
		case <-l.ptt.Keyup():
			l.events <- PushToTalkUp
		case <-l.toggle.Keydown():
			l.events <- ToggleDown
		}
	}
}

var keys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
}

func keyFor(name string) (hotkey.Key, error) {
	k, ok := keys[name]
	if !ok {
		return 0, fmt.Errorf("no key named %q", name)
	}
	return k, nil
}
