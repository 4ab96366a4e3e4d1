package notify

import (
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Tones are synthesized at the capture rate, matching what the
// transcription pipeline uses everywhere else.
const toneRate = 16000

const (
	startFreq = 880
	stopFreq  = 440
	doneFreq  = 660

	doneGap = 50 * time.Millisecond
)

// Emitter plays short transition tones through the default output.
// A volume of 0 disables playback entirely and never touches the
// speaker, so the daemon runs fine on machines without an output device.
type Emitter struct {
	volume   float64
	duration time.Duration
	ready    bool
}

func NewEmitter(volume float64, duration time.Duration) (*Emitter, error) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	e := &Emitter{volume: volume, duration: duration}
	if volume == 0 {
		return e, nil
	}

	sr := beep.SampleRate(toneRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, err
	}
	e.ready = true

	return e, nil
}

// Start marks the beginning of a recording.
func (e *Emitter) Start() {
	e.play(tone(startFreq, e.duration, e.volume))
}

// Stop marks the end of a recording.
func (e *Emitter) Stop() {
	e.play(tone(stopFreq, e.duration, e.volume))
}

// Done marks a completed transcription about to be typed: a double beep.
func (e *Emitter) Done() {
	first := tone(doneFreq, e.duration, e.volume)
	gap := make([]float32, toneRate*int(doneGap)/int(time.Second))
	second := tone(doneFreq, e.duration, e.volume)

	samples := make([]float32, 0, len(first)+len(gap)+len(second))
	samples = append(samples, first...)
	samples = append(samples, gap...)
	samples = append(samples, second...)

	e.play(samples)
}

// play is asynchronous so tones never delay state transitions.
func (e *Emitter) play(samples []float32) {
	if !e.ready || len(samples) == 0 {
		return
	}
	speaker.Play(streamSamples(samples))
}

// tone synthesizes a sine wave with a 10 ms fade in and out to avoid
// clicks at the edges.
func tone(freq float64, duration time.Duration, volume float64) []float32 {
	n := int(toneRate * duration.Seconds())
	if n <= 0 || volume <= 0 {
		return nil
	}

	fade := toneRate / 100
	if fade*2 > n {
		fade = n / 2
	}

	out := make([]float32, n)
	for i := range out {
		v := math.Sin(2*math.Pi*freq*float64(i)/toneRate) * volume
		if fade > 0 {
			if i < fade {
				v *= float64(i) / float64(fade)
			}
			if tail := n - 1 - i; tail < fade {
				v *= float64(tail) / float64(fade)
			}
		}
		out[i] = float32(v)
	}

	return out
}

func streamSamples(samples []float32) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for i := range buf {
			if pos >= len(samples) {
				break
			}
			v := float64(samples[pos])
			buf[i][0], buf[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}
