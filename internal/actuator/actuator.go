// Package actuator is the field-node side of berrywatch: it joins the
// network, optionally listens to the telemetry topic and periodically
// reports a detection to the collector endpoint.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/telemetry"
)

// ErrSend wraps every failed collector POST.
var ErrSend = errors.New("collector send failed")

// Link reports whether the node's network link is usable.
type Link interface {
	Up(ctx context.Context) bool
}

// TCPProbe considers the link up once Addr accepts a TCP connection.
// An empty Addr is always up.
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

// Up dials Addr once.
func (p TCPProbe) Up(ctx context.Context) bool {
	if p.Addr == "" {
		return true
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Join polls link every interval until it is up or ctx is done.
func Join(ctx context.Context, link Link, every time.Duration, log logrus.FieldLogger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if link.Up(ctx) {
			log.WithField("attempts", attempt).Info("Network link up")
			return nil
		}
		log.WithField("attempt", attempt).Debug("Waiting for network link")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reading is one detection as reported to the collector.
type Reading struct {
	Category   string
	Label      string
	Confidence float64
}

// FormPayload encodes r as tipo=<category>&nombre=<label>&conf=<confidence>.
// Field order is fixed.
func FormPayload(r Reading) string {
	return "tipo=" + url.QueryEscape(r.Category) +
		"&nombre=" + url.QueryEscape(r.Label) +
		"&conf=" + strconv.FormatFloat(r.Confidence, 'f', 2, 64)
}

// latest keeps the most recent reading seen on the telemetry topic.
type latest struct {
	mu      sync.RWMutex
	reading Reading
	set     bool
}

func (l *latest) store(r Reading) {
	l.mu.Lock()
	l.reading = r
	l.set = true
	l.mu.Unlock()
}

func (l *latest) load() (Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.set
}

// Observe records a telemetry payload as the reading to report next.
// Its signature matches telemetry.MQTTClient.Subscribe handlers.
func (r *Reporter) Observe(topic string, payload []byte) {
	msg, err := telemetry.ParseMessage(string(payload))
	if err != nil {
		r.log.WithField("topic", topic).WithError(err).Warn("Ignoring telemetry message")
		return
	}
	r.last.store(Reading{Category: msg.Category, Label: msg.Label, Confidence: msg.Confidence})
	r.log.WithFields(logrus.Fields{"category": msg.Category, "label": msg.Label}).Debug("Telemetry received")
}

// Current returns the reading the next tick will send: the last telemetry
// message if any, otherwise the fallback.
func (r *Reporter) Current() Reading {
	if reading, ok := r.last.load(); ok {
		return reading
	}
	return r.cfg.Fallback
}

// String is used in log fields.
func (r Reading) String() string {
	return fmt.Sprintf("%s|%s|%.2f", r.Category, r.Label, r.Confidence)
}
