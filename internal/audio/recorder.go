package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const frameSize = 1024

var ErrAlreadyRecording = errors.New("recorder busy")

// Recorder captures mono PCM from the default input device. Start opens
// the stream and buffers samples on a background goroutine until Stop,
// which returns the finished clip. The device is opened per recording,
// so a permission granted after boot takes effect on the next Start.
type Recorder struct {
	rate int

	mu      sync.Mutex
	stream  *portaudio.Stream
	samples []float32
	stop    chan struct{}
	done    chan error
}

func NewRecorder(rate int) *Recorder {
	return &Recorder{rate: rate}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return ErrAlreadyRecording
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.rate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	r.stream = stream
	r.samples = make([]float32, 0, r.rate*3)
	r.stop = make(chan struct{})
	r.done = make(chan error, 1)

	go r.capture(stream, buf, r.stop, r.done)

	return nil
}

func (r *Recorder) capture(stream *portaudio.Stream, buf []float32, stop <-chan struct{}, done chan<- error) {
	for {
		select {
		case <-stop:
			done <- nil
			return
		default:
		}

		if err := stream.Read(); err != nil {
			done <- fmt.Errorf("read input stream: %w", err)
			return
		}

		r.mu.Lock()
		r.samples = append(r.samples, buf...)
		r.mu.Unlock()
	}
}

// Stop closes the stream and returns everything captured since Start.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if r.stream == nil {
		r.mu.Unlock()
		return Clip{}, errors.New("not recording")
	}
	stop, done, stream := r.stop, r.done, r.stream
	r.mu.Unlock()

	close(stop)
	captureErr := <-done

	stream.Stop()
	stream.Close()

	r.mu.Lock()
	samples := r.samples
	r.samples = nil
	r.stream = nil
	r.mu.Unlock()

	if captureErr != nil {
		return Clip{}, captureErr
	}

	return Clip{Samples: samples, Rate: r.rate}, nil
}
