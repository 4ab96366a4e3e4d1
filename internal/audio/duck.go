package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Ducker fades the system output volume down while a recording is open
// so playback does not bleed into the microphone, and restores it when
// the recording stops.
type Ducker struct {
	mu       sync.Mutex
	active   bool
	original int
	floor    int // percent the output is lowered to
}

func NewDucker(floor int) *Ducker {
	if floor < 0 {
		floor = 0
	}
	if floor > 100 {
		floor = 100
	}
	return &Ducker{floor: floor}
}

// Duck lowers the output volume to the configured floor. A second call
// while active is a no-op.
func (d *Ducker) Duck(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	cur, err := outputVolume(ctx)
	if err != nil {
		return fmt.Errorf("read output volume: %w", err)
	}

	target := d.floor
	if cur < target {
		target = cur
	}

	if err := fadeOutput(ctx, cur, target, fade); err != nil {
		return err
	}

	d.original = cur
	d.active = true
	return nil
}

// Unduck restores the volume recorded by the previous Duck.
func (d *Ducker) Unduck(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	cur, err := outputVolume(ctx)
	if err != nil {
		return fmt.Errorf("read output volume: %w", err)
	}

	if err := fadeOutput(ctx, cur, d.original, fade); err != nil {
		return err
	}

	d.active = false
	return nil
}

// fadeOutput moves the output volume from one level to another in
// fixed-size steps.
func fadeOutput(ctx context.Context, from, to int, duration time.Duration) error {
	if duration <= 0 || from == to {
		return setOutputVolume(ctx, to)
	}

	const minStepDuration = 25 * time.Millisecond

	steps := int(duration / minStepDuration)
	if steps < 1 {
		steps = 1
	}
	stepDuration := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frac := float64(i) / float64(steps)
		v := int(math.Round(float64(from) + float64(to-from)*frac))
		if err := setOutputVolume(ctx, v); err != nil {
			return err
		}

		if i < steps {
			time.Sleep(stepDuration)
		}
	}

	return nil
}

// --- osascript helpers ---

func outputVolume(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", "output volume of (get volume settings)")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("osascript: %w", err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", strings.TrimSpace(string(out)), err)
	}
	return v, nil
}

func setOutputVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	script := fmt.Sprintf("set volume output volume %d", percent)
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}
