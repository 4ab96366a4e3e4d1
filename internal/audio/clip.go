package audio

import "time"

// Clip is a finite mono recording. Samples are float32 in [-1, 1].
type Clip struct {
	Samples []float32
	Rate    int
}

func (c Clip) Duration() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.Rate) * float64(time.Second))
}

func (c Clip) Empty() bool { return len(c.Samples) == 0 }
