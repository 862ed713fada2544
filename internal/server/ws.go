package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/inspect"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = 2 * time.Second

// detectionsMessage is one websocket frame of the live detection feed.
type detectionsMessage struct {
	Seq        uint64               `json:"seq"`
	Mode       string               `json:"mode"`
	Healthy    int                  `json:"healthy"`
	Diseased   int                  `json:"diseased"`
	Detections inspect.DetectionSet `json:"detections"`
	Timestamp  int64                `json:"timestamp"`
}

func newDetectionsMessage(s Snapshot) detectionsMessage {
	set := s.Detections
	if set == nil {
		set = inspect.DetectionSet{}
	}
	return detectionsMessage{
		Seq:        s.Seq,
		Mode:       s.Mode.String(),
		Healthy:    set.Count(inspect.Healthy),
		Diseased:   set.Count(inspect.Diseased),
		Detections: set,
		Timestamp:  s.At.UnixMilli(),
	}
}

// DetectionsHandler pushes every frame's detection set over WebSocket.
type DetectionsHandler struct {
	hub *Hub
	log logrus.FieldLogger
}

// NewDetectionsHandler creates a new DetectionsHandler reading from hub.
func NewDetectionsHandler(hub *Hub, log logrus.FieldLogger) *DetectionsHandler {
	return &DetectionsHandler{hub: hub, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	// Reading detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newDetectionsMessage(snap)); err != nil {
				return
			}
		}
	}
}
