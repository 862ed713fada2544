package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/berrywatch/internal/detector"
	"github.com/ayusman/berrywatch/internal/inspect"
)

func sampleSet() inspect.DetectionSet {
	return inspect.DetectionSet{
		{Category: inspect.Diseased, Label: "leaf_spot", Confidence: 0.81, Box: detector.Box{X1: 10, Y1: 20, X2: 50, Y2: 60}},
		{Category: inspect.Healthy, Label: "fresa_sana", Confidence: 0.93, Box: detector.Box{X1: 100, Y1: 100, X2: 160, Y2: 170}},
	}
}

func TestHub(t *testing.T) {
	t.Run("latest is zero before first frame", func(t *testing.T) {
		require.Zero(t, NewHub().Latest().Seq)
	})

	t.Run("update bumps seq", func(t *testing.T) {
		h := NewHub()
		h.Update([]byte("a"), nil, inspect.ModeAll)
		h.Update([]byte("b"), sampleSet(), inspect.ModeHealthyOnly)

		snap := h.Latest()
		require.Equal(t, uint64(2), snap.Seq)
		require.Equal(t, []byte("b"), snap.JPEG)
		require.Equal(t, inspect.ModeHealthyOnly, snap.Mode)
		require.Len(t, snap.Detections, 2)
	})

	t.Run("slow subscriber sees only newest", func(t *testing.T) {
		h := NewHub()
		ch, unsubscribe := h.Subscribe()
		defer unsubscribe()

		for i := 0; i < 5; i++ {
			h.Update(nil, nil, inspect.ModeAll)
		}

		snap := <-ch
		require.Equal(t, uint64(5), snap.Seq)
		select {
		case extra := <-ch:
			t.Fatalf("unexpected extra snapshot %d", extra.Seq)
		default:
		}
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		h := NewHub()
		_, unsubscribe := h.Subscribe()
		require.Equal(t, 1, h.Subscribers())

		unsubscribe()
		unsubscribe()
		require.Zero(t, h.Subscribers())

		h.Update(nil, nil, inspect.ModeAll)
	})
}

func TestStreamHandler(t *testing.T) {
	hub := NewHub()
	hub.Update([]byte{0xff, 0xd8, 0xff, 0xd9}, nil, inspect.ModeAll)

	srv := httptest.NewServer(NewStreamHandler(hub, 50))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace"))

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "--frame\r\n", boundary)

	ctype, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Content-Type: image/jpeg\r\n", ctype)

	length, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Content-Length: 4\r\n", length)
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	rec := do(t, NewStreamHandler(NewHub(), 0), http.MethodPost, "/api/stream", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDetectionsHandler(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewDetectionsHandler(hub, quietLogger()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Update(nil, sampleSet(), inspect.ModeAll)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg detectionsMessage
	require.NoError(t, conn.ReadJSON(&msg))

	require.Equal(t, uint64(1), msg.Seq)
	require.Equal(t, "todos", msg.Mode)
	require.Equal(t, 1, msg.Healthy)
	require.Equal(t, 1, msg.Diseased)
	require.Equal(t, sampleSet(), msg.Detections)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
