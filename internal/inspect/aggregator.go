package inspect

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/berrywatch/internal/detector"
)

// Thresholds holds the minimum confidence for each model.
type Thresholds struct {
	Disease float64
	Healthy float64
}

// DefaultThresholds favours precision on disease and recall on healthy fruit.
var DefaultThresholds = Thresholds{Disease: 0.25, Healthy: 0.20}

// Aggregator fans a frame out to the models active in the current mode and
// merges their tagged outputs.
type Aggregator struct {
	disease    detector.Detector
	healthy    detector.Detector
	thresholds Thresholds
}

// NewAggregator creates an aggregator over the disease and healthy models.
func NewAggregator(disease, healthy detector.Detector, thresholds Thresholds) *Aggregator {
	return &Aggregator{
		disease:    disease,
		healthy:    healthy,
		thresholds: thresholds,
	}
}

// Aggregate runs the models selected by mode on frame. Diseased detections
// come first, then healthy ones, each in the order its model returned them.
// Overlapping boxes from the two models are both kept.
func (a *Aggregator) Aggregate(frame *gocv.Mat, mode Mode) (DetectionSet, error) {
	set := DetectionSet{}

	if mode.runs(Diseased) {
		tagged, err := run(a.disease, frame, a.thresholds.Disease, Diseased)
		if err != nil {
			return DetectionSet{}, err
		}
		set = append(set, tagged...)
	}

	if mode.runs(Healthy) {
		tagged, err := run(a.healthy, frame, a.thresholds.Healthy, Healthy)
		if err != nil {
			return DetectionSet{}, err
		}
		set = append(set, tagged...)
	}

	return set, nil
}

func run(d detector.Detector, frame *gocv.Mat, threshold float64, category Category) ([]Detection, error) {
	results, err := d.Detect(frame, threshold)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", category, err)
	}

	tagged := make([]Detection, 0, len(results))
	for _, r := range results {
		tagged = append(tagged, Detection{
			Category:   category,
			Label:      d.Label(r.ClassID),
			Confidence: r.Confidence,
			Box:        r.Box,
		})
	}
	return tagged, nil
}
