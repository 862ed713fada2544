package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/store"
)

// ReportInserter stores collector reports.
type ReportInserter interface {
	Insert(rep *store.Report) error
}

// collectorForm is the form body posted by field nodes.
type collectorForm struct {
	Tipo   string  `validate:"required,oneof=enfermedad sana"`
	Nombre string  `validate:"required,max=128"`
	Conf   float64 `validate:"gte=0,lte=1"`
}

// CollectorHandler accepts form-encoded detections from field nodes:
// tipo=<category>&nombre=<label>&conf=<confidence>.
type CollectorHandler struct {
	reports  ReportInserter
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewCollectorHandler creates a collector storing into reports.
func NewCollectorHandler(reports ReportInserter, validate *validator.Validate, log logrus.FieldLogger) *CollectorHandler {
	return &CollectorHandler{reports: reports, validate: validate, log: log}
}

// ServeHTTP handles POST /nuevo and replies in plain text.
func (h *CollectorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	conf, err := strconv.ParseFloat(r.PostForm.Get("conf"), 64)
	if err != nil {
		http.Error(w, "conf must be a number", http.StatusBadRequest)
		return
	}

	form := collectorForm{
		Tipo:   r.PostForm.Get("tipo"),
		Nombre: r.PostForm.Get("nombre"),
		Conf:   conf,
	}
	if err := h.validate.Struct(form); err != nil {
		http.Error(w, fmt.Sprintf("invalid report: %v", err), http.StatusBadRequest)
		return
	}

	rep := &store.Report{
		Category:   form.Tipo,
		Label:      form.Nombre,
		Confidence: form.Conf,
		RemoteAddr: r.RemoteAddr,
	}
	if err := h.reports.Insert(rep); err != nil {
		h.log.WithError(err).Error("store collector report")
		http.Error(w, "failed to store report", http.StatusInternalServerError)
		return
	}

	h.log.WithFields(logrus.Fields{
		"id":       rep.ID,
		"category": rep.Category,
		"label":    rep.Label,
		"remote":   rep.RemoteAddr,
	}).Info("Collector report received")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK %d", rep.ID)
}
