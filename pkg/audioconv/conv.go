// Package audioconv decodes audio files into the mono 16 kHz float32
// PCM that whisper consumes. Supported containers: WAV, MP3, Ogg
// (Vorbis or Opus).
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	opus "github.com/pekim/opus"
)

const targetRate = 16000

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// FileToPCM decodes an audio file to mono 16 kHz samples. The format is
// chosen by extension, with a magic-bytes fallback for unnamed files.
func FileToPCM(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga":
		return decodeOgg(f)
	}

	magic, err := sniff(f)
	if err != nil {
		return nil, err
	}
	switch magic {
	case "RIFF":
		return decodeWAV(f)
	case "OggS":
		return decodeOgg(f)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func sniff(f *os.File) (string, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return string(magic), nil
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav file")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	x := intToFloat32(buf.Data, depth)

	channels, rate := 1, 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}

	return normalize(x, channels, rate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}

	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	// go-mp3 always emits interleaved stereo.
	return normalize(int16ToFloat32(ints), 2, dec.SampleRate()), nil
}

func decodeOgg(f *os.File) ([]float32, error) {
	if samples, err := decodeOggVorbis(f); err == nil {
		return samples, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	samples, err := decodeOggOpus(f)
	if err != nil {
		return nil, fmt.Errorf("ogg is neither vorbis nor opus: %w", err)
	}
	return samples, nil
}

func decodeOggVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}
	return normalize(pcm, format.Channels, format.SampleRate), nil
}

func decodeOggOpus(rs io.ReadSeeker) ([]float32, error) {
	dec, err := opus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := dec.ChannelCount()
	if channels <= 0 {
		channels = 1
	}

	// Opus always decodes at 48 kHz.
	var pcm []float32
	buf := make([]int16, 48000*channels/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16ToFloat32(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm) == 0 {
		return nil, errors.New("empty opus stream")
	}

	return normalize(pcm, channels, 48000), nil
}

// normalize downmixes interleaved channels and resamples to targetRate.
func normalize(samples []float32, channels, rate int) []float32 {
	if channels > 1 {
		samples = downmix(samples, channels)
	}
	if rate != targetRate {
		samples = resample(samples, rate, targetRate)
	}
	return samples
}
