package feed

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscriber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", logger)
	require.NoError(t, srv.Start())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a moment to register the subscriber.
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 1
	}, time.Second, 5*time.Millisecond)

	sent := Event{Kind: KindTranscript, Session: "abc", Text: "hello world", Time: time.Now()}
	srv.Publish(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindTranscript, got.Kind)
	assert.Equal(t, "abc", got.Session)
	assert.Equal(t, "hello world", got.Text)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", logger)
	require.NoError(t, srv.Start())
	defer srv.Close()

	srv.Publish(Event{Kind: KindRecordingStarted, Time: time.Now()})
}

func TestPublishReturnsPromptlyWithStalledSubscriber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", logger)
	require.NoError(t, srv.Start())
	defer srv.Close()

	// Connect a subscriber that never reads, so socket buffers fill up
	// and writes to it stall.
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 1
	}, time.Second, 5*time.Millisecond)

	payload := strings.Repeat("x", 64*1024)
	start := time.Now()
	for i := 0; i < 100; i++ {
		srv.Publish(Event{Kind: KindTranscript, Text: payload, Time: time.Now()})
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDeadSubscriberIsDropped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", logger)
	require.NoError(t, srv.Start())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	conn.Close()

	srv.Publish(Event{Kind: KindRecordingStopped, Time: time.Now()})

	assert.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
