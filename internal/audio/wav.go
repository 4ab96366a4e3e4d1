package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores a clip as a 16-bit mono WAV file.
func WriteWAV(path string, clip Clip) error {
	if clip.Empty() {
		return fmt.Errorf("empty clip")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, clip.Rate, 16, 1, 1)

	data := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: clip.Rate},
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}

	return nil
}
