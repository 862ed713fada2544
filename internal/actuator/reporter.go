package actuator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config configures a Reporter.
type Config struct {
	CollectorURL string
	Interval     time.Duration
	LinkCheck    time.Duration
	// Fallback is reported until a telemetry message arrives.
	Fallback Reading
	// Timeout bounds each POST. Zero means Interval.
	Timeout time.Duration
}

// Stats counts collector sends.
type Stats struct {
	Sent   uint64
	Failed uint64
}

// Reporter posts the current reading to the collector on a fixed interval.
type Reporter struct {
	cfg    Config
	client *http.Client
	link   Link
	log    logrus.FieldLogger
	last   latest

	mu    sync.Mutex
	stats Stats
}

// NewReporter creates a reporter that waits for link before sending.
func NewReporter(cfg Config, link Link, log logrus.FieldLogger) *Reporter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = cfg.Interval
	}
	return &Reporter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		link:   link,
		log:    log,
	}
}

// Run joins the network, then sends one report per interval until ctx is done.
// Send errors are logged and the next tick tries again.
func (r *Reporter) Run(ctx context.Context) error {
	r.log.WithField("collector", r.cfg.CollectorURL).Info("Joining network")
	if err := Join(ctx, r.link, r.cfg.LinkCheck, r.log); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(r.cfg.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := r.Send(ctx); err != nil {
			r.log.WithError(err).Warn("Report not delivered")
		}
	}
}

// Send posts the current reading once.
func (r *Reporter) Send(ctx context.Context) error {
	reading := r.Current()
	body := FormPayload(reading)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.CollectorURL, strings.NewReader(body))
	if err != nil {
		r.count(false)
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		r.count(false)
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode/100 != 2 {
		r.count(false)
		return fmt.Errorf("%w: status %d: %s", ErrSend, resp.StatusCode, strings.TrimSpace(string(reply)))
	}

	r.count(true)
	r.log.WithFields(logrus.Fields{
		"reading": reading.String(),
		"reply":   strings.TrimSpace(string(reply)),
	}).Info("Report sent")
	return nil
}

// Stats returns send counters.
func (r *Reporter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reporter) count(ok bool) {
	r.mu.Lock()
	if ok {
		r.stats.Sent++
	} else {
		r.stats.Failed++
	}
	r.mu.Unlock()
}
