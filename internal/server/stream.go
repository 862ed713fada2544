package server

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// DefaultStreamFPS caps the MJPEG stream rate.
const DefaultStreamFPS = 15

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	hub *Hub
	fps float64
}

// NewStreamHandler creates a new StreamHandler reading from hub at most fps frames per second.
func NewStreamHandler(hub *Hub, fps float64) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{hub: hub, fps: fps}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	limiter := rate.NewLimiter(rate.Limit(h.fps), 1)
	var sent uint64

	for {
		if err := limiter.Wait(r.Context()); err != nil {
			return
		}

		snap := h.hub.Latest()
		if snap.Seq == sent || len(snap.JPEG) == 0 {
			continue
		}
		sent = snap.Seq

		if err := writePart(w, snap.JPEG); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
