package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"golang.design/x/hotkey/mainthread"

	"github.com/puneetkumarbajaj/speak/internal/audio"
	"github.com/puneetkumarbajaj/speak/internal/config"
	"github.com/puneetkumarbajaj/speak/internal/feed"
	"github.com/puneetkumarbajaj/speak/internal/hotkey"
	"github.com/puneetkumarbajaj/speak/internal/inject"
	"github.com/puneetkumarbajaj/speak/internal/ipc"
	"github.com/puneetkumarbajaj/speak/internal/model"
	"github.com/puneetkumarbajaj/speak/internal/notify"
	"github.com/puneetkumarbajaj/speak/internal/session"
	"github.com/puneetkumarbajaj/speak/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	// Hotkey registration on macOS must happen off the main thread
	// while the main thread runs the event tap.
	mainthread.Init(run)
}

func run() {
	configPath := cli.StringP("config", "c", "speak.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides config)")
	cli.Parse()

	godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.SetDefault(log.New(tint.NewHandler(os.Stdout, nil)))
		log.Error("Failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[level],
	})))

	log.Info("Booting up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("Shutting down", "signal", s)
		cancel()
	}()

	modelPath := cfg.Model.Path
	if modelPath == "" {
		dir, err := model.DefaultDir()
		if err != nil {
			log.Error("Failed to resolve model cache dir", "err", err)
			os.Exit(1)
		}
		mgr := model.NewManager(cfg.Model.URL, dir, log.Default())
		modelPath, err = mgr.Ensure(ctx)
		if err != nil {
			log.Error("Failed to fetch model", "url", cfg.Model.URL, "err", err)
			os.Exit(1)
		}
	}

	log.Debug("Loaded model", "path", modelPath)

	whisper, err := stt.NewTranscriber(modelPath)
	if err != nil {
		log.Error("Failed to init whisper", "model", modelPath, "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper")

	rec := audio.NewRecorder(cfg.Audio.SampleRate)
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	tones, err := notify.NewEmitter(cfg.Feedback.Level(), cfg.Feedback.Duration.Std())
	if err != nil {
		log.Error("Failed to init feedback tones", "err", err)
		os.Exit(1)
	}

	var observers []session.Observer
	observers = append(observers, func(ev session.Event) {
		if ev.Kind == session.KindError {
			go notify.Desktop("Speak", ev.Text)
		}
	})

	if cfg.Feed.Enabled {
		feedSrv := feed.NewServer(cfg.Feed.Addr, log.Default())
		if err := feedSrv.Start(); err != nil {
			log.Error("Failed to start feed", "addr", cfg.Feed.Addr, "err", err)
			os.Exit(1)
		}
		defer feedSrv.Close()
		observers = append(observers, func(ev session.Event) {
			feedSrv.Publish(feed.Event{
				Kind:    ev.Kind,
				Session: ev.Session,
				Text:    ev.Text,
				Time:    ev.Time,
			})
		})
		log.Debug("Loaded feed", "addr", feedSrv.Addr())
	}

	var ducker session.OutputDucker
	if cfg.Audio.Duck.Enabled {
		ducker = audio.NewDucker(cfg.Audio.Duck.Volume)
	}

	ctrl := session.New(session.Config{
		MinRecording: cfg.Audio.MinRecording.Std(),
		MaxRecording: cfg.Audio.MaxRecording.Std(),
		DumpDir:      cfg.Audio.DumpDir,
		DuckFade:     cfg.Audio.Duck.Fade.Std(),
	}, session.Deps{
		Capturer: rec,
		Transcriber: &transcriber{
			stt: whisper,
			opts: stt.Options{
				Language:      cfg.Model.Language,
				TranslateToEn: cfg.Model.Translate,
				Threads:       cfg.Model.Threads,
			},
		},
		Injector:  inject.NewTyper(),
		Feedback:  tones,
		Ducker:    ducker,
		Logger:    log.Default(),
		Observers: observers,
	})

	srv, err := ipc.StartServer(cfg.IPC.Socket, func(req ipc.Request) ipc.Response {
		return handleControl(ctx, ctrl, req)
	})
	if err != nil {
		log.Error("Failed ipc server", "socket", cfg.IPC.Socket, "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Debug("Loaded ipc", "socket", cfg.IPC.Socket)

	listener, err := hotkey.NewListener(cfg.Hotkeys.PushToTalk, cfg.Hotkeys.Toggle)
	if err != nil {
		// Likely a missing Accessibility grant. The control socket
		// still works, so stay up and tell the user.
		err = fmt.Errorf("%w: %v", session.ErrPermissionDenied, err)
		log.Warn("Hotkeys unavailable, control socket only", "err", err)
		go notify.Desktop("Speak", "Hotkeys unavailable. Grant Accessibility access and restart.")
	} else {
		go listener.Run(ctx)
		go dispatchHotkeys(ctx, listener, ctrl)
		log.Debug("Loaded hotkeys",
			"push_to_talk", "opt+"+cfg.Hotkeys.PushToTalk,
			"toggle", "opt+"+cfg.Hotkeys.Toggle,
		)
	}

	log.Info("Boot up - successful")

	if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
		log.Error("Controller stopped", "err", err)
		os.Exit(1)
	}
}

// transcriber adapts the whisper wrapper to the session interface.
type transcriber struct {
	stt  *stt.Transcriber
	opts stt.Options
}

func (t *transcriber) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := t.stt.TranscribePCM(ctx, clip.Samples, t.opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func dispatchHotkeys(ctx context.Context, l *hotkey.Listener, ctrl *session.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.Events():
			log.Debug("Hotkey", "event", ev)
			switch ev {
			case hotkey.PushToTalkDown:
				ctrl.PushToTalkDown()
			case hotkey.PushToTalkUp:
				ctrl.PushToTalkUp()
			case hotkey.ToggleDown:
				ctrl.Toggle()
			}
		}
	}
}

func handleControl(ctx context.Context, ctrl *session.Controller, req ipc.Request) ipc.Response {
	switch req.Op {
	case ipc.OpToggle:
		ctrl.Toggle()
		return ipc.Response{OK: true, Message: "toggled"}
	case ipc.OpStatus:
		st := ctrl.Status()
		resp := ipc.Response{OK: true, State: st.State, Uptime: st.Uptime}
		if st.Mode != "" {
			resp.Message = st.Mode
		}
		for _, t := range st.Transcripts {
			resp.Transcripts = append(resp.Transcripts, t.Text)
		}
		return resp
	case ipc.OpTranscribe:
		text, err := ctrl.TranscribeFile(ctx, req.Path)
		if err != nil {
			return ipc.Response{OK: false, Message: err.Error()}
		}
		return ipc.Response{OK: true, Text: text}
	default:
		log.Warn("Unknown command", "op", req.Op)
		return ipc.Response{OK: false, Message: "unknown op: " + req.Op}
	}
}
