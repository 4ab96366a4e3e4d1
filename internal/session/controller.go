// Package session sequences hotkey events into capture, transcription
// and injection. All state transitions happen on one goroutine, so at
// most one recording is ever open.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/puneetkumarbajaj/speak/internal/audio"
	"github.com/puneetkumarbajaj/speak/pkg/audioconv"
)

const recentTranscripts = 10

type Config struct {
	MinRecording time.Duration
	MaxRecording time.Duration
	DumpDir      string // write captured clips as WAV files when set
	DuckFade     time.Duration
}

type Deps struct {
	Capturer    Capturer
	Transcriber Transcriber
	Injector    Injector
	Feedback    Feedback
	Ducker      OutputDucker // optional
	Logger      *slog.Logger
	Observers   []Observer
}

type eventKind int

const (
	evPTTDown eventKind = iota
	evPTTUp
	evToggle
	evTimeout
	evStatus
)

type event struct {
	kind    eventKind
	session string      // evTimeout: the recording it was armed for
	reply   chan Status // evStatus
}

type injectJob struct {
	session string
	text    string
}

type Controller struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	events  chan event
	injectQ chan injectJob
	duckQ   chan bool // true fades output down, false back up

	// Owned by the Run loop.
	current *recording
	timer   *time.Timer

	mu        sync.Mutex
	recent    []Transcript
	startedAt time.Time
}

func New(cfg Config, deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		deps:      deps,
		log:       log,
		events:    make(chan event, 16),
		injectQ:   make(chan injectJob, 16),
		duckQ:     make(chan bool, 16),
		startedAt: time.Now(),
	}
}

// Run consumes events until the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	go c.injectLoop(ctx)
	if c.deps.Ducker != nil {
		go c.duckLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// PushToTalkDown reports the push-to-talk key going down.
func (c *Controller) PushToTalkDown() { c.post(event{kind: evPTTDown}) }

// PushToTalkUp reports the push-to-talk key being released.
func (c *Controller) PushToTalkUp() { c.post(event{kind: evPTTUp}) }

// Toggle reports a press of the toggle key.
func (c *Controller) Toggle() { c.post(event{kind: evToggle}) }

// Status answers the current state; safe from any goroutine.
func (c *Controller) Status() Status {
	reply := make(chan Status, 1)
	c.post(event{kind: evStatus, reply: reply})
	return <-reply
}

// TranscribeFile recognizes an audio file. Independent of the hotkey
// state machine; used by the control channel.
func (c *Controller) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, err := audioconv.FileToPCM(path)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return c.deps.Transcriber.Transcribe(ctx, audio.Clip{Samples: pcm, Rate: 16000})
}

// post never blocks the caller: a full queue drops the event, since a
// stale hotkey press is worse than a missed one.
func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event queue full, dropping event")
		if ev.reply != nil {
			ev.reply <- Status{State: "busy"}
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evPTTDown:
		if c.current != nil {
			return
		}
		c.begin(ctx, ModePushToTalk)

	case evPTTUp:
		if c.current == nil || c.current.mode != ModePushToTalk {
			return
		}
		c.finish(ctx)

	case evToggle:
		if c.current == nil {
			c.begin(ctx, ModeToggle)
			return
		}
		if c.current.mode != ModeToggle {
			return
		}
		c.finish(ctx)

	case evTimeout:
		if c.current == nil || c.current.id != ev.session {
			return
		}
		c.log.Info("max recording duration reached", "session", ev.session)
		c.finish(ctx)

	case evStatus:
		ev.reply <- c.snapshot()
	}
}

func (c *Controller) begin(ctx context.Context, mode Mode) {
	if err := c.deps.Capturer.Start(); err != nil {
		err = captureError(err)
		c.log.Error("cannot start recording", "err", err)
		c.publish(Event{Kind: KindError, Text: err.Error(), Time: time.Now()})
		return
	}

	rec := &recording{id: uuid.NewString(), mode: mode, startedAt: time.Now()}
	c.current = rec

	c.duck(ctx, true)

	c.deps.Feedback.Start()

	if c.cfg.MaxRecording > 0 {
		c.timer = time.AfterFunc(c.cfg.MaxRecording, func() {
			c.post(event{kind: evTimeout, session: rec.id})
		})
	}

	c.publish(Event{Kind: KindRecordingStarted, Session: rec.id, Time: time.Now()})
	c.log.Info("recording", "mode", mode.String(), "session", rec.id)
}

func (c *Controller) finish(ctx context.Context) {
	rec := c.current
	c.current = nil

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	clip, err := c.deps.Capturer.Stop()
	c.deps.Feedback.Stop()

	c.duck(ctx, false)

	c.publish(Event{Kind: KindRecordingStopped, Session: rec.id, Time: time.Now()})

	if err != nil {
		err = captureError(err)
		c.log.Error("capture failed", "session", rec.id, "err", err)
		c.publish(Event{Kind: KindError, Session: rec.id, Text: err.Error(), Time: time.Now()})
		return
	}

	if clip.Duration() < c.cfg.MinRecording {
		c.log.Info("recording too short, ignoring",
			"session", rec.id, "duration", clip.Duration())
		return
	}

	c.log.Info("recorded", "session", rec.id, "duration", clip.Duration())

	// Transcriptions run off-loop so the next hotkey press is never
	// delayed; clips are disjoint, injection order is enforced below.
	go c.transcribe(ctx, rec, clip)
}

func (c *Controller) transcribe(ctx context.Context, rec *recording, clip audio.Clip) {
	if c.cfg.DumpDir != "" {
		path := filepath.Join(c.cfg.DumpDir, rec.id+".wav")
		if err := audio.WriteWAV(path, clip); err != nil {
			c.log.Warn("clip dump failed", "path", path, "err", err)
		}
	}

	text, err := c.deps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		c.log.Error("transcription failed", "session", rec.id, "err", err)
		c.publish(Event{Kind: KindError, Session: rec.id, Text: err.Error(), Time: time.Now()})
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		c.log.Info("nothing recognized", "session", rec.id)
		c.publish(Event{Kind: KindError, Session: rec.id, Text: ErrEmptyTranscript.Error(), Time: time.Now()})
		return
	}

	c.remember(text)
	c.publish(Event{Kind: KindTranscript, Session: rec.id, Text: text, Time: time.Now()})

	select {
	case c.injectQ <- injectJob{session: rec.id, text: text}:
	case <-ctx.Done():
	}
}

// duck enqueues an output fade. A single goroutine applies fades in
// order, so a slow fade-down can never land after its session's
// fade-up and leave the output ducked while idle.
func (c *Controller) duck(ctx context.Context, down bool) {
	if c.deps.Ducker == nil {
		return
	}
	select {
	case c.duckQ <- down:
	case <-ctx.Done():
	}
}

func (c *Controller) duckLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case down := <-c.duckQ:
			var err error
			if down {
				err = c.deps.Ducker.Duck(ctx, c.cfg.DuckFade)
			} else {
				err = c.deps.Ducker.Unduck(ctx, c.cfg.DuckFade)
			}
			if err != nil {
				c.log.Warn("output fade failed", "down", down, "err", err)
			}
		}
	}
}

// injectLoop is the only writer to the injector, so typed output never
// interleaves; jobs arrive in transcription completion order.
func (c *Controller) injectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.injectQ:
			c.deps.Feedback.Done()
			if err := c.deps.Injector.Type(job.text); err != nil {
				err = fmt.Errorf("%w: %v", ErrInjectionFailed, err)
				c.log.Error("injection failed", "session", job.session, "err", err)
				c.publish(Event{Kind: KindError, Session: job.session, Text: err.Error(), Time: time.Now()})
			}
		}
	}
}

func (c *Controller) publish(ev Event) {
	for _, obs := range c.deps.Observers {
		obs(ev)
	}
}

func (c *Controller) remember(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent = append(c.recent, Transcript{Text: text, Time: time.Now()})
	if len(c.recent) > recentTranscripts {
		c.recent = c.recent[len(c.recent)-recentTranscripts:]
	}
}

func (c *Controller) snapshot() Status {
	st := Status{State: "idle", Uptime: time.Since(c.startedAt).Seconds()}
	if c.current != nil {
		st.State = "recording"
		st.Mode = c.current.mode.String()
	}

	c.mu.Lock()
	st.Transcripts = append([]Transcript(nil), c.recent...)
	c.mu.Unlock()

	return st
}
