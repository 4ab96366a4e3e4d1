package session

import (
	"context"
	"time"

	"github.com/puneetkumarbajaj/speak/internal/audio"
)

type Mode int

const (
	ModePushToTalk Mode = iota
	ModeToggle
)

func (m Mode) String() string {
	switch m {
	case ModePushToTalk:
		return "push_to_talk"
	case ModeToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// recording is the single active RecordingSession. Owned exclusively by
// the controller loop; a nil recording means Idle.
type recording struct {
	id        string
	mode      Mode
	startedAt time.Time
}

// Capturer yields one finite clip per Start/Stop pair.
type Capturer interface {
	Start() error
	Stop() (audio.Clip, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

type Injector interface {
	Type(text string) error
}

// Feedback fires the transition tones.
type Feedback interface {
	Start()
	Stop()
	Done()
}

// OutputDucker lowers other audio output during capture.
type OutputDucker interface {
	Duck(ctx context.Context, fade time.Duration) error
	Unduck(ctx context.Context, fade time.Duration) error
}

// Event kinds reported to observers.
const (
	KindRecordingStarted = "recording_started"
	KindRecordingStopped = "recording_stopped"
	KindTranscript       = "transcript"
	KindError            = "error"
)

type Event struct {
	Kind    string
	Session string
	Text    string
	Time    time.Time
}

type Observer func(Event)

type Transcript struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

type Status struct {
	State       string       `json:"state"`
	Mode        string       `json:"mode,omitempty"`
	Uptime      float64      `json:"uptime_sec"`
	Transcripts []Transcript `json:"transcripts,omitempty"`
}
