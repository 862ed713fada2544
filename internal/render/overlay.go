// Package render draws detections onto frames and shows them to the operator.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/berrywatch/internal/inspect"
)

// Overlay colours per category.
var (
	ColorDiseased = color.RGBA{R: 255, A: 255}
	ColorHealthy  = color.RGBA{G: 255, A: 255}
	colorText     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorPanel    = gocv.NewScalar(0, 0, 0, 0)
)

var panelRect = image.Rect(5, 5, 300, 100)

// ColorFor returns the overlay colour of a category.
func ColorFor(c inspect.Category) color.RGBA {
	if c == inspect.Diseased {
		return ColorDiseased
	}
	return ColorHealthy
}

// Abbrev returns the short tag drawn next to a box.
func Abbrev(c inspect.Category) string {
	if c == inspect.Diseased {
		return "ENF"
	}
	return "SNA"
}

// BoxLabel returns the caption drawn above a detection box.
func BoxLabel(d inspect.Detection) string {
	return fmt.Sprintf("%s: %s %.2f", Abbrev(d.Category), d.Label, d.Confidence)
}

// PanelLines returns the three status lines of the top-left panel.
func PanelLines(set inspect.DetectionSet, mode inspect.Mode) []string {
	return []string{
		fmt.Sprintf("MODO: %s", strings.ToUpper(mode.String())),
		fmt.Sprintf("SANAS: %d", set.Count(inspect.Healthy)),
		fmt.Sprintf("ENF: %d", set.Count(inspect.Diseased)),
	}
}

// Draw annotates frame in place with every detection box, its caption and the status panel.
func Draw(frame *gocv.Mat, set inspect.DetectionSet, mode inspect.Mode) error {
	if frame == nil || frame.Empty() {
		return nil
	}

	for _, d := range set {
		c := ColorFor(d.Category)
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
		if err := gocv.Rectangle(frame, rect, c, 2); err != nil {
			return fmt.Errorf("draw box: %w", err)
		}

		pt := image.Pt(d.Box.X1, max(20, d.Box.Y1-5))
		if err := gocv.PutText(frame, BoxLabel(d), pt, gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return fmt.Errorf("draw label: %w", err)
		}
	}

	shadePanel(frame)

	lines := PanelLines(set, mode)
	colors := []color.RGBA{colorText, ColorHealthy, ColorDiseased}
	for i, line := range lines {
		pt := image.Pt(10, 30+30*i)
		if err := gocv.PutText(frame, line, pt, gocv.FontHersheySimplex, 0.7, colors[i], 2); err != nil {
			return fmt.Errorf("draw panel: %w", err)
		}
	}
	return nil
}

// shadePanel darkens the panel area by half so the status text stays readable.
func shadePanel(frame *gocv.Mat) {
	bounds := panelRect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if bounds.Empty() {
		return
	}

	roi := frame.Region(bounds)
	defer roi.Close()

	black := gocv.NewMatWithSizeFromScalar(colorPanel, roi.Rows(), roi.Cols(), roi.Type())
	defer black.Close()

	gocv.AddWeighted(roi, 0.5, black, 0.5, 0, &roi)
}
