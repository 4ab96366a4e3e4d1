package inject

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

const (
	// Small delay so the frontmost app regains focus before the chord.
	focusDelay = 50 * time.Millisecond
	// Time given to the target app to read the clipboard before restore.
	restoreDelay = 120 * time.Millisecond
)

// Typer inserts text at the OS input focus by temporarily placing it on
// the clipboard and sending the platform paste chord, then restoring the
// previous clipboard contents.
type Typer struct {
	mu    sync.Mutex
	paste func(string) error
}

func NewTyper() *Typer {
	return &Typer{paste: pasteClipboard}
}

// Type sends text to the focused application. Concurrent calls would
// interleave chords and clipboard writes; the mutex keeps one paste in
// flight at a time.
func (t *Typer) Type(text string) error {
	if text == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.paste(text)
}

func pasteClipboard(text string) error {
	orig, _ := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	time.Sleep(focusDelay)

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("key bonding: %w", err)
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("send paste chord: %w", err)
	}

	time.Sleep(restoreDelay)
	_ = clipboard.WriteAll(orig)

	return nil
}
