package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	results    []Result
	labels     Labels
	err        error
	calls      int
	thresholds []float64
	closed     bool
	mu         sync.Mutex
}

// NewMockDetector creates a new MockDetector resolving class ids through labels.
func NewMockDetector(labels Labels) *MockDetector {
	if labels == nil {
		labels = Labels{}
	}
	return &MockDetector{labels: labels}
}

// SetResults sets the results that will be returned by Detect.
func (m *MockDetector) SetResults(results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured results or error, filtered by minConfidence.
func (m *MockDetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.thresholds = append(m.thresholds, minConfidence)

	if m.err != nil {
		return nil, m.err
	}

	out := make([]Result, 0, len(m.results))
	for _, r := range m.results {
		if r.Confidence >= minConfidence {
			out = append(out, r)
		}
	}
	return out, nil
}

// Label resolves a class id through the configured table.
func (m *MockDetector) Label(classID int) string {
	return m.labels.Name(classID)
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Thresholds returns the minConfidence passed to each Detect call.
func (m *MockDetector) Thresholds() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.thresholds...)
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// LeafSpot returns a preset diseased-strawberry result for class 0 of a disease table.
func LeafSpot(confidence float64) Result {
	return Result{Box: Box{X1: 40, Y1: 60, X2: 180, Y2: 210}, ClassID: 0, Confidence: confidence}
}

// HealthyBerry returns a preset healthy-strawberry result for class 0 of a healthy table.
func HealthyBerry(confidence float64) Result {
	return Result{Box: Box{X1: 300, Y1: 120, X2: 420, Y2: 260}, ClassID: 0, Confidence: confidence}
}
