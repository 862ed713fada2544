// Package inspect holds the strawberry inspection core: per-frame detection
// merging, display mode control and the operator-triggered commit of detections
// to the event log and the telemetry channel.
package inspect

import (
	"sync"

	"github.com/ayusman/berrywatch/internal/detector"
)

// Category tells which model produced a detection. The string value is the
// one written to the event log and the telemetry message.
type Category string

const (
	// Diseased marks detections from the disease model.
	Diseased Category = "enfermedad"
	// Healthy marks detections from the healthy-fruit model.
	Healthy Category = "sana"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == Diseased || c == Healthy
}

// Detection is one tagged model output for the current frame.
type Detection struct {
	Category   Category     `json:"category"`
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Box        detector.Box `json:"box"`
}

// DetectionSet is the ordered set of detections for a single frame.
type DetectionSet []Detection

// Count returns how many detections in the set belong to category.
func (s DetectionSet) Count(category Category) int {
	n := 0
	for _, d := range s {
		if d.Category == category {
			n++
		}
	}
	return n
}

// Mode selects which models run on each frame.
type Mode int

const (
	// ModeAll runs both models.
	ModeAll Mode = iota
	// ModeHealthyOnly runs only the healthy-fruit model.
	ModeHealthyOnly
	// ModeDiseasedOnly runs only the disease model.
	ModeDiseasedOnly
)

// String returns the operator-facing name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeHealthyOnly:
		return "sanas"
	case ModeDiseasedOnly:
		return "enfermedades"
	default:
		return "todos"
	}
}

// runs reports whether the model for category is active in this mode.
func (m Mode) runs(category Category) bool {
	switch m {
	case ModeHealthyOnly:
		return category == Healthy
	case ModeDiseasedOnly:
		return category == Diseased
	default:
		return true
	}
}

// ModeController holds the current display mode. It starts in ModeAll.
type ModeController struct {
	mode Mode
	mu   sync.RWMutex
}

// NewModeController creates a controller in ModeAll.
func NewModeController() *ModeController {
	return &ModeController{mode: ModeAll}
}

// SetMode replaces the current mode. Setting the same mode twice is a no-op.
func (c *ModeController) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
}

// CurrentMode returns the current mode.
func (c *ModeController) CurrentMode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Apply switches mode for the three mode commands and reports whether cmd was one of them.
// Every other command leaves the mode untouched.
func (c *ModeController) Apply(cmd Command) bool {
	switch cmd {
	case CommandHealthyOnly:
		c.SetMode(ModeHealthyOnly)
	case CommandDiseasedOnly:
		c.SetMode(ModeDiseasedOnly)
	case CommandAll:
		c.SetMode(ModeAll)
	default:
		return false
	}
	return true
}
