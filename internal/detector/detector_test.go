package detector

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const epsilon = 1e-6

func TestClampBox(t *testing.T) {
	t.Run("inside frame is unchanged", func(t *testing.T) {
		b, ok := ClampBox(10.7, 20.2, 110.9, 220.5, 640, 480)
		if !ok {
			t.Fatal("expected valid box")
		}
		want := Box{X1: 10, Y1: 20, X2: 110, Y2: 220}
		if b != want {
			t.Errorf("got %+v, want %+v", b, want)
		}
	})

	t.Run("clamps to frame bounds", func(t *testing.T) {
		b, ok := ClampBox(-15, -3, 700, 500, 640, 480)
		if !ok {
			t.Fatal("expected valid box")
		}
		want := Box{X1: 0, Y1: 0, X2: 640, Y2: 480}
		if b != want {
			t.Errorf("got %+v, want %+v", b, want)
		}
	})

	t.Run("degenerate box is rejected", func(t *testing.T) {
		if _, ok := ClampBox(50, 50, 50, 90, 640, 480); ok {
			t.Error("zero-width box should be rejected")
		}
		if _, ok := ClampBox(700, 10, 800, 90, 640, 480); ok {
			t.Error("box fully outside the frame should be rejected")
		}
	})

	t.Run("width and height", func(t *testing.T) {
		b := Box{X1: 10, Y1: 20, X2: 40, Y2: 100}
		if b.Width() != 30 || b.Height() != 80 {
			t.Errorf("got %dx%d, want 30x80", b.Width(), b.Height())
		}
	})
}

func TestDecodeYOLOv8(t *testing.T) {
	// 3 anchors, 2 classes: layout is [cx, cy, w, h, score0, score1][anchor]
	const anchors = 3
	rows := [][anchors]float32{
		{100, 320, 630}, // cx
		{100, 320, 10},  // cy
		{40, 50, 40},    // w
		{40, 50, 40},    // h
		{0.9, 0.1, 0.2}, // class 0
		{0.1, 0.15, 0.6},
	}
	data := make([]float32, 0, len(rows)*anchors)
	for _, r := range rows {
		data = append(data, r[:]...)
	}

	// frame is 2x wider and 1.5x taller than the network input
	results := decodeYOLOv8(data, len(rows), anchors, 1280, 960, 640, 0.25)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}

	first := results[0]
	if first.ClassID != 0 || math.Abs(first.Confidence-0.9) > epsilon {
		t.Errorf("first result class/conf = %d/%f, want 0/0.9", first.ClassID, first.Confidence)
	}
	if want := (Box{X1: 160, Y1: 120, X2: 240, Y2: 180}); first.Box != want {
		t.Errorf("first box = %+v, want %+v", first.Box, want)
	}

	second := results[1]
	if second.ClassID != 1 || math.Abs(second.Confidence-0.6) > epsilon {
		t.Errorf("second result class/conf = %d/%f, want 1/0.6", second.ClassID, second.Confidence)
	}
	if want := (Box{X1: 1220, Y1: 0, X2: 1280, Y2: 45}); second.Box != want {
		t.Errorf("second box = %+v, want %+v", second.Box, want)
	}
}

func TestDecodeYOLOv8_ShortBuffer(t *testing.T) {
	if got := decodeYOLOv8(make([]float32, 5), 6, 3, 640, 640, 640, 0.25); got != nil {
		t.Errorf("expected nil for short buffer, got %v", got)
	}
}

func TestSuppress(t *testing.T) {
	candidates := []Result{
		{Box: Box{X1: 10, Y1: 10, X2: 110, Y2: 110}, ClassID: 0, Confidence: 0.9},
		{Box: Box{X1: 12, Y1: 12, X2: 112, Y2: 112}, ClassID: 0, Confidence: 0.8},
		{Box: Box{X1: 300, Y1: 300, X2: 400, Y2: 400}, ClassID: 1, Confidence: 0.5},
	}

	kept := suppress(candidates, 0.25, 0.7)

	if len(kept) != 2 {
		t.Fatalf("expected 2 boxes after NMS, got %d", len(kept))
	}
	for _, k := range kept {
		if k.Confidence == 0.8 {
			t.Error("lower-scoring overlapping box should have been suppressed")
		}
	}

	if got := suppress(nil, 0.25, 0.7); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestSuppress_PerClass(t *testing.T) {
	// two diseases on the same berry
	candidates := []Result{
		{Box: Box{X1: 10, Y1: 10, X2: 110, Y2: 110}, ClassID: 3, Confidence: 0.6},
		{Box: Box{X1: 11, Y1: 11, X2: 111, Y2: 111}, ClassID: 1, Confidence: 0.9},
	}

	kept := suppress(candidates, 0.25, 0.7)

	if len(kept) != 2 {
		t.Fatalf("expected both classes to survive NMS, got %d", len(kept))
	}
	if kept[0].ClassID != 1 || kept[1].ClassID != 3 {
		t.Errorf("expected classes in ascending order, got %d then %d", kept[0].ClassID, kept[1].ClassID)
	}
}

func TestParseLabels(t *testing.T) {
	t.Run("mapping form", func(t *testing.T) {
		labels, err := ParseLabels([]byte("names:\n  0: leaf_spot\n  1: gray_mold\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if labels.Name(0) != "leaf_spot" || labels.Name(1) != "gray_mold" {
			t.Errorf("unexpected labels: %v", labels)
		}
	})

	t.Run("list form", func(t *testing.T) {
		labels, err := ParseLabels([]byte("names: [fresa_sana]\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if labels.Name(0) != "fresa_sana" {
			t.Errorf("unexpected labels: %v", labels)
		}
	})

	t.Run("unknown id falls back", func(t *testing.T) {
		labels := Labels{0: "fresa_sana"}
		if got := labels.Name(7); got != "class_7" {
			t.Errorf("got %q, want class_7", got)
		}
	})

	t.Run("missing names is a load error", func(t *testing.T) {
		_, err := ParseLabels([]byte("nc: 2\n"))
		if !errors.Is(err, ErrModelLoad) {
			t.Errorf("expected ErrModelLoad, got %v", err)
		}
	})
}

func TestLoadLabels_MissingFile(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestNewYOLODetector_MissingModel(t *testing.T) {
	dir := t.TempDir()
	labelsPath := filepath.Join(dir, "labels.yaml")
	if err := os.WriteFile(labelsPath, []byte("names: [fresa_sana]\n"), 0644); err != nil {
		t.Fatalf("write labels: %v", err)
	}

	_, err := NewYOLODetector(YOLOConfig{
		ModelPath:  filepath.Join(dir, "missing.onnx"),
		LabelsPath: labelsPath,
	})
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty results by default", func(t *testing.T) {
		mock := NewMockDetector(nil)

		results, err := mock.Detect(nil, 0.25)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %v", results)
		}
	})

	t.Run("filters by threshold and records calls", func(t *testing.T) {
		mock := NewMockDetector(Labels{0: "leaf_spot"})
		mock.SetResults([]Result{LeafSpot(0.81), LeafSpot(0.21)})

		results, err := mock.Detect(nil, 0.25)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 result above threshold, got %d", len(results))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
		if th := mock.Thresholds(); len(th) != 1 || th[0] != 0.25 {
			t.Errorf("unexpected thresholds %v", th)
		}
		if mock.Label(0) != "leaf_spot" {
			t.Errorf("unexpected label %q", mock.Label(0))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector(nil)

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		results, err := mock.Detect(nil, 0.2)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if results != nil {
			t.Errorf("expected nil results when error is set, got %v", results)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector(nil)

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("expected mock to report closed")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*YOLODetector)(nil)
	})
}
