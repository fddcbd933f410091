package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	return b
}

// readEvent reads lines until a blank line and returns the event block.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

func TestBroadcasterStreamsEvents(t *testing.T) {
	b := startBroadcaster(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	connected := readEvent(t, reader)
	assert.Contains(t, connected, "event: connected")

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	b.Broadcast(Event{Event: "cycle.completed", ID: "c-9", Data: map[string]int{"rows": 2}})

	block := readEvent(t, reader)
	assert.Contains(t, block, "event: cycle.completed")
	assert.Contains(t, block, "id: c-9")
	assert.Contains(t, block, `data: {"rows":2}`)
}

func TestBroadcasterClientDisconnect(t *testing.T) {
	b := startBroadcaster(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	_ = resp.Body.Close()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	// Run is not started, so the channel fills up.
	for i := 0; i < cap(b.events)+5; i++ {
		b.Broadcast(Event{Event: "x"})
	}
	assert.Len(t, b.events, cap(b.events))
}
