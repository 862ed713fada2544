package app

import (
	"fmt"
	"io"

	"github.com/ayusman/berrywatch/internal/inspect"
)

func printControls(w io.Writer) {
	fmt.Fprintln(w, "========== CONTROLS ==========")
	fmt.Fprintln(w, "G = Save current detections")
	fmt.Fprintln(w, "V = Show records")
	fmt.Fprintln(w, "S = Healthy berries only")
	fmt.Fprintln(w, "E = Diseases only")
	fmt.Fprintln(w, "A = All detections")
	fmt.Fprintln(w, "C = Clear console")
	fmt.Fprintln(w, "Q = Quit")
	fmt.Fprintln(w, "==============================")
}

func printReport(w io.Writer, r inspect.CommitReport) {
	if r.Attempted == 0 {
		fmt.Fprintln(w, "\nNothing to save")
		return
	}

	fmt.Fprintf(w, "\nSaving %d detections...\n", r.Attempted)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  #%d %s (%s): %s failed: %v\n",
			f.Index+1, f.Detection.Label, f.Detection.Category, f.Stage, f.Err)
	}
	fmt.Fprintf(w, "Stored %d/%d, published %d/%d\n",
		r.StoreSucceeded, r.Attempted, r.PublishSucceeded, r.Attempted)
}

func printSummary(w io.Writer, s inspect.Summary) {
	fmt.Fprintln(w, "\n========== RECORDS ==========")
	fmt.Fprintf(w, "Total records: %d\n", s.Total)
	if len(s.Recent) > 0 {
		fmt.Fprintf(w, "\nLast %d records:\n", len(s.Recent))
		for _, e := range s.Recent {
			fmt.Fprintf(w, "\nID: %d | Date: %s\n", e.ID, e.Timestamp)
			fmt.Fprintf(w, "Type: %s | Name: %s | Confidence: %.2f\n", e.Category, e.Label, e.Confidence)
		}
	}
	fmt.Fprintln(w, "=============================")
}
