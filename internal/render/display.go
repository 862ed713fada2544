package render

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultTitle is the window title of the operator view.
const DefaultTitle = "Detector Fresas - Sanas y Enfermedades"

// Display shows annotated frames and reports the key pressed by the operator.
type Display interface {
	Show(frame *gocv.Mat)
	// PollKey waits briefly for a key and returns its code, or -1 when none was pressed.
	PollKey() int
	Close() error
}

// Window is a Display backed by a HighGUI window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a HighGUI window with the given title.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultTitle
	}
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays frame.
func (w *Window) Show(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	w.win.IMShow(*frame)
}

// PollKey waits 1ms for a key press.
func (w *Window) PollKey() int {
	return w.win.WaitKey(1)
}

// Close destroys the window.
func (w *Window) Close() error {
	w.win.Close()
	return nil
}

// Headless is a Display without a screen. Keys can be injected for tests and
// scripted runs; with none queued PollKey reports no key.
type Headless struct {
	mu    sync.Mutex
	keys  []int
	shown int
}

// NewHeadless creates a headless display that replays keys in order.
func NewHeadless(keys ...int) *Headless {
	return &Headless{keys: keys}
}

// Show counts the frame.
func (h *Headless) Show(frame *gocv.Mat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown++
}

// PollKey returns the next queued key or -1.
func (h *Headless) PollKey() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.keys) == 0 {
		return -1
	}
	k := h.keys[0]
	h.keys = h.keys[1:]
	return k
}

// Shown returns how many frames were shown.
func (h *Headless) Shown() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

// Close does nothing.
func (h *Headless) Close() error { return nil }

// EncodeJPEG encodes frame as JPEG and returns a copy of the bytes.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty frame")
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
