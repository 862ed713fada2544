package detector

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// Default YOLO settings.
const (
	DefaultInputSize    = 640
	DefaultNMSThreshold = 0.7
)

// YOLOConfig holds the settings for one ONNX YOLO model.
type YOLOConfig struct {
	ModelPath  string
	LabelsPath string
	// InputSize is the square network input in pixels (default: 640).
	InputSize int
	// NMSThreshold is the IoU above which overlapping boxes of this model are suppressed.
	NMSThreshold float64
}

// YOLODetector implements Detector with an exported YOLOv8 ONNX model run through OpenCV DNN.
type YOLODetector struct {
	net       gocv.Net
	labels    Labels
	inputSize int
	nms       float32
	mu        sync.Mutex
}

// NewYOLODetector loads the model and its class table.
// Any failure is wrapped in ErrModelLoad; callers treat it as fatal.
func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s: %v", ErrModelLoad, cfg.ModelPath, err)
	}

	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to read network %s", ErrModelLoad, cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("%w: set backend: %v", ErrModelLoad, err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("%w: set target: %v", ErrModelLoad, err)
	}

	size := cfg.InputSize
	if size <= 0 {
		size = DefaultInputSize
	}
	nms := cfg.NMSThreshold
	if nms <= 0 {
		nms = DefaultNMSThreshold
	}

	return &YOLODetector{
		net:       net,
		labels:    labels,
		inputSize: size,
		nms:       float32(nms),
	}, nil
}

// Detect runs one forward pass and decodes the boxes scoring at least minConfidence.
func (d *YOLODetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Result, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(*frame, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 exports [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	candidates := decodeYOLOv8(data, dims[1], dims[2], frame.Cols(), frame.Rows(), d.inputSize, minConfidence)
	return suppress(candidates, float32(minConfidence), d.nms), nil
}

// Label resolves a class id through the model's class table.
func (d *YOLODetector) Label(classID int) string {
	return d.labels.Name(classID)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodeYOLOv8 reads a channel-major [channels][anchors] tensor where each
// anchor holds cx, cy, w, h followed by one score per class. Coordinates are
// in network input pixels and get rescaled to the frame.
func decodeYOLOv8(data []float32, channels, anchors, frameW, frameH, inputSize int, minConfidence float64) []Result {
	if len(data) < channels*anchors {
		return nil
	}

	xFactor := float64(frameW) / float64(inputSize)
	yFactor := float64(frameH) / float64(inputSize)

	at := func(c, i int) float64 { return float64(data[c*anchors+i]) }

	var results []Result
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, 0.0
		for c := 4; c < channels; c++ {
			if s := at(c, i); s > bestScore {
				bestClass, bestScore = c-4, s
			}
		}
		if bestClass < 0 || bestScore < minConfidence {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		box, ok := ClampBox(
			(cx-w/2)*xFactor, (cy-h/2)*yFactor,
			(cx+w/2)*xFactor, (cy+h/2)*yFactor,
			frameW, frameH,
		)
		if !ok {
			continue
		}

		results = append(results, Result{Box: box, ClassID: bestClass, Confidence: bestScore})
	}
	return results
}

// suppress applies non-maximum suppression within each class, so overlapping
// boxes of different classes are all kept. Classes come out in ascending id
// order, each in the order OpenCV returns.
func suppress(candidates []Result, minConfidence, nmsThreshold float32) []Result {
	kept := make([]Result, 0, len(candidates))
	if len(candidates) == 0 {
		return kept
	}

	byClass := make(map[int][]Result)
	classes := make([]int, 0)
	for _, c := range candidates {
		if _, ok := byClass[c.ClassID]; !ok {
			classes = append(classes, c.ClassID)
		}
		byClass[c.ClassID] = append(byClass[c.ClassID], c)
	}
	sort.Ints(classes)

	for _, class := range classes {
		group := byClass[class]
		rects := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			rects[i] = image.Rect(c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2)
			scores[i] = float32(c.Confidence)
		}

		for _, idx := range gocv.NMSBoxes(rects, scores, minConfidence, nmsThreshold) {
			if idx >= 0 && idx < len(group) {
				kept = append(kept, group[idx])
			}
		}
	}
	return kept
}
