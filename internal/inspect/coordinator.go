package inspect

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/store"
	"github.com/ayusman/berrywatch/internal/telemetry"
)

// TimestampLayout is the layout of the shared batch timestamp in the event log.
const TimestampLayout = "2006-01-02 15:04:05"

// Publisher sends a telemetry message on a topic.
type Publisher interface {
	Publish(topic, message string) error
}

// EventStore appends committed detections to the durable log.
type EventStore interface {
	Append(e store.Event) (int64, error)
}

// Stage names the step of a commit that failed.
type Stage string

const (
	StagePublish Stage = "publish"
	StageStore   Stage = "store"
)

// Failure records one failed step for one detection of a batch.
type Failure struct {
	Index     int
	Detection Detection
	Stage     Stage
	Err       error
}

// CommitReport summarises one commit batch.
type CommitReport struct {
	BatchID          string
	Timestamp        time.Time
	Attempted        int
	StoreSucceeded   int
	PublishSucceeded int
	Failures         []Failure
}

// OK reports whether every publish and every append in the batch succeeded.
func (r CommitReport) OK() bool {
	return len(r.Failures) == 0
}

// Coordinator turns the current detection set into durable events and telemetry.
type Coordinator struct {
	publisher Publisher
	events    EventStore
	topic     string
	now       func() time.Time
	log       logrus.FieldLogger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock replaces the wall clock used for batch timestamps.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a coordinator publishing on topic.
func NewCoordinator(publisher Publisher, events EventStore, topic string, log logrus.FieldLogger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		publisher: publisher,
		events:    events,
		topic:     topic,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FormatMessage builds the telemetry payload category|label|confidence.
func FormatMessage(d Detection) string {
	return fmt.Sprintf("%s|%s|%.2f", d.Category, d.Label, d.Confidence)
}

// Commit publishes and appends every detection of set, in order, under one
// shared timestamp. A failed publish never skips the append and a failed
// append never stops the batch. An empty set does nothing.
func (c *Coordinator) Commit(set DetectionSet) CommitReport {
	if len(set) == 0 {
		return CommitReport{}
	}

	ts := c.now().Truncate(time.Second)
	report := CommitReport{
		BatchID:   uuid.NewString(),
		Timestamp: ts,
		Attempted: len(set),
	}
	stamp := ts.Format(TimestampLayout)

	log := c.log.WithField("batch", report.BatchID)

	for i, d := range set {
		entry := log.WithFields(logrus.Fields{
			"category": d.Category,
			"label":    d.Label,
		})

		if err := c.publish(FormatMessage(d)); err != nil {
			report.Failures = append(report.Failures, Failure{Index: i, Detection: d, Stage: StagePublish, Err: err})
			entry.WithField("stage", StagePublish).WithError(err).Warn("Telemetry publish failed")
		} else {
			report.PublishSucceeded++
		}

		event := store.Event{
			Timestamp:  stamp,
			Category:   string(d.Category),
			Label:      d.Label,
			Confidence: d.Confidence,
		}
		if id, err := c.appendEvent(event); err != nil {
			report.Failures = append(report.Failures, Failure{Index: i, Detection: d, Stage: StageStore, Err: err})
			entry.WithField("stage", StageStore).WithError(err).Error("Event append failed")
		} else {
			report.StoreSucceeded++
			entry.WithField("id", id).Debug("Event committed")
		}
	}

	log.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"stored":    report.StoreSucceeded,
		"published": report.PublishSucceeded,
	}).Info("Commit finished")

	return report
}

func (c *Coordinator) publish(message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", telemetry.ErrPublish, r)
		}
	}()
	return c.publisher.Publish(c.topic, message)
}

func (c *Coordinator) appendEvent(e store.Event) (id int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", store.ErrStorage, r)
		}
	}()
	return c.events.Append(e)
}
