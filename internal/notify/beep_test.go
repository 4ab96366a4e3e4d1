package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneShape(t *testing.T) {
	const volume = 0.5
	samples := tone(880, 100*time.Millisecond, volume)

	require.Len(t, samples, toneRate/10)

	// 10ms fade in and out, silent edges.
	assert.Zero(t, samples[0])
	assert.Zero(t, samples[len(samples)-1])

	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		}
		assert.LessOrEqual(t, float64(s), volume+1e-6)
		assert.GreaterOrEqual(t, float64(s), -volume-1e-6)
	}
	assert.Greater(t, float64(peak), volume*0.9)
}

func TestToneZeroVolume(t *testing.T) {
	assert.Nil(t, tone(880, 100*time.Millisecond, 0))
	assert.Nil(t, tone(880, 0, 0.5))
}

func TestToneShortDurationFade(t *testing.T) {
	// Shorter than twice the fade window; must not panic or overrun.
	samples := tone(440, 5*time.Millisecond, 1)
	require.NotEmpty(t, samples)
	assert.Zero(t, samples[0])
}

func TestEmitterDisabled(t *testing.T) {
	e, err := NewEmitter(0, 100*time.Millisecond)
	require.NoError(t, err)

	// No speaker was initialized; all of these must be no-ops.
	e.Start()
	e.Stop()
	e.Done()
}

func TestEmitterClampsVolume(t *testing.T) {
	e := &Emitter{volume: 1, duration: 100 * time.Millisecond}
	samples := tone(880, e.duration, e.volume)
	for _, s := range samples {
		assert.LessOrEqual(t, float64(s), 1.0+1e-6)
	}
}

func TestStreamSamples(t *testing.T) {
	src := []float32{0.1, 0.2, 0.3}
	st := streamSamples(src)

	buf := make([][2]float64, 2)
	n, ok := st.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 2, n)
	assert.InDelta(t, 0.1, buf[0][0], 1e-6)
	assert.Equal(t, buf[0][0], buf[0][1])

	n, ok = st.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 1, n)

	_, ok = st.Stream(buf)
	assert.False(t, ok)
}
