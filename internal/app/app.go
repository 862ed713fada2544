// Package app runs the strawberry inspection loop: capture, detect, render and
// operator commands, one frame at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/capture"
	"github.com/ayusman/berrywatch/internal/inspect"
	"github.com/ayusman/berrywatch/internal/render"
)

// CommandBuffer is how many commands from the tray and HTTP can wait for the loop.
const CommandBuffer = 16

// FrameSink receives every annotated frame and its detection set.
type FrameSink interface {
	Update(jpeg []byte, set inspect.DetectionSet, mode inspect.Mode)
}

// Config holds the collaborators of the inspection loop.
// Camera must already be open.
type Config struct {
	Camera      capture.Camera
	Aggregator  *inspect.Aggregator
	Modes       *inspect.ModeController
	Coordinator *inspect.Coordinator
	Reporter    *inspect.Reporter
	Display     render.Display
	// Sink is optional. When set, each frame is JPEG-encoded and handed to it.
	Sink    FrameSink
	Console io.Writer
	Log     logrus.FieldLogger
}

// App is the pipeline context. It owns the current detection set and the
// operator command queue.
type App struct {
	config   Config
	commands chan inspect.Command
	current  inspect.DetectionSet
	frames   int
	mu       sync.RWMutex
}

// New creates a new App with the given configuration.
func New(config Config) *App {
	if config.Modes == nil {
		config.Modes = inspect.NewModeController()
	}
	if config.Display == nil {
		config.Display = render.NewHeadless()
	}
	if config.Console == nil {
		config.Console = os.Stdout
	}
	if config.Log == nil {
		config.Log = logrus.StandardLogger()
	}

	return &App{
		config:   config,
		commands: make(chan inspect.Command, CommandBuffer),
		current:  inspect.DetectionSet{},
	}
}

// Submit queues cmd for the loop. It reports false when the queue is full.
func (a *App) Submit(cmd inspect.Command) bool {
	select {
	case a.commands <- cmd:
		return true
	default:
		a.config.Log.WithField("command", cmd.String()).Warn("Command queue full, dropping command")
		return false
	}
}

// Current returns the detection set of the last processed frame.
func (a *App) Current() inspect.DetectionSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append(inspect.DetectionSet(nil), a.current...)
}

// Mode returns the current display mode.
func (a *App) Mode() inspect.Mode {
	return a.config.Modes.CurrentMode()
}

// Frames returns how many frames have been processed.
func (a *App) Frames() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frames
}

// Run processes frames until the operator quits, the source ends or ctx is
// cancelled, then prints the final summary.
func (a *App) Run(ctx context.Context) error {
	printControls(a.config.Console)
	a.config.Log.Info("Inspection loop started")

	var runErr error
	for {
		if ctx.Err() != nil {
			a.config.Log.Info("Shutdown requested")
			break
		}

		done, err := a.Step()
		if err != nil {
			runErr = err
			break
		}
		if done {
			break
		}
	}

	a.finish()
	return runErr
}

// Step processes one frame and at most one operator command. It reports
// true when the loop should stop: on quit or at the end of the stream.
func (a *App) Step() (bool, error) {
	frame, err := a.config.Camera.ReadFrame()
	if errors.Is(err, capture.ErrEndOfStream) {
		a.config.Log.Info("Frame source ended")
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	mode := a.config.Modes.CurrentMode()

	set, err := a.config.Aggregator.Aggregate(frame, mode)
	if err != nil {
		a.config.Log.WithError(err).WithField("mode", mode.String()).Error("Detection failed, skipping frame")
		set = inspect.DetectionSet{}
	}

	a.mu.Lock()
	a.current = set
	a.frames++
	a.mu.Unlock()

	if err := render.Draw(frame, set, mode); err != nil {
		a.config.Log.WithError(err).Warn("Overlay drawing failed")
	}
	a.config.Display.Show(frame)

	if a.config.Sink != nil {
		if jpeg, err := render.EncodeJPEG(frame); err != nil {
			a.config.Log.WithError(err).Debug("Frame encoding failed")
		} else {
			a.config.Sink.Update(jpeg, set, mode)
		}
	}

	return a.dispatch(a.poll()), nil
}

// poll returns the pressed key's command, or else one queued command.
func (a *App) poll() inspect.Command {
	if cmd := inspect.KeyCommand(a.config.Display.PollKey()); cmd != inspect.CommandNone {
		return cmd
	}
	select {
	case cmd := <-a.commands:
		return cmd
	default:
		return inspect.CommandNone
	}
}

// dispatch runs cmd and reports whether it asked the loop to stop.
func (a *App) dispatch(cmd inspect.Command) bool {
	if cmd == inspect.CommandNone {
		return false
	}
	a.config.Log.WithField("command", cmd.String()).Debug("Operator command")

	if a.config.Modes.Apply(cmd) {
		fmt.Fprintf(a.config.Console, "\nMode: %s\n", a.config.Modes.CurrentMode())
		return false
	}

	switch cmd {
	case inspect.CommandCommit:
		report := a.config.Coordinator.Commit(a.Current())
		printReport(a.config.Console, report)
	case inspect.CommandShowRecent:
		a.showSummary()
	case inspect.CommandClear:
		fmt.Fprint(a.config.Console, "\033[H\033[2J")
		fmt.Fprintln(a.config.Console, "Console cleared")
	case inspect.CommandQuit:
		fmt.Fprintln(a.config.Console, "\nClosing...")
		return true
	}
	return false
}

func (a *App) showSummary() {
	summary, err := a.config.Reporter.Summarize()
	if err != nil {
		a.config.Log.WithError(err).Error("Failed to read event log")
		fmt.Fprintf(a.config.Console, "Could not read records: %v\n", err)
		return
	}
	printSummary(a.config.Console, summary)
}

func (a *App) finish() {
	a.showSummary()
	a.config.Log.WithField("frames", a.Frames()).Info("Inspection loop stopped")
}

// Close releases the camera and the display.
func (a *App) Close() error {
	var errs []error
	if err := a.config.Camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if err := a.config.Display.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close display: %w", err))
	}
	return errors.Join(errs...)
}
