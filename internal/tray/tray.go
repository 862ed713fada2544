// Package tray provides a system tray menu as a second operator command source.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/berrywatch/internal/inspect"
)

// Submitter queues a command for the inspection loop.
type Submitter func(cmd inspect.Command) bool

// menuEntry describes one command item of the tray menu.
type menuEntry struct {
	title   string
	tooltip string
	cmd     inspect.Command
}

// menuEntries lists the command items in menu order. A nil entry is a separator.
var menuEntries = []*menuEntry{
	{"Save detections", "Commit the current detections", inspect.CommandCommit},
	{"Show records", "Print the latest saved detections", inspect.CommandShowRecent},
	nil,
	{"Healthy only", "Run only the healthy model", inspect.CommandHealthyOnly},
	{"Diseased only", "Run only the disease model", inspect.CommandDiseasedOnly},
	{"All", "Run both models", inspect.CommandAll},
	{"Clear", "Clear the console", inspect.CommandClear},
	nil,
	{"Quit", "Quit berrywatch", inspect.CommandQuit},
}

// Tray represents the system tray application.
type Tray struct {
	title  string
	submit Submitter
	quit   func()

	mu       sync.RWMutex
	mode     inspect.Mode
	dropped  int
	menuMode *systray.MenuItem
	menuLast *systray.MenuItem
}

// New creates a new Tray that forwards menu clicks to submit.
func New(title string, submit Submitter) *Tray {
	return &Tray{
		title:  title,
		submit: submit,
		quit:   systray.Quit,
	}
}

// Run starts the system tray application.
// This function blocks until Quit is called or the Quit item is clicked.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	t.quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle(t.title)
	systray.SetTooltip("Strawberry inspection")

	t.mu.Lock()
	t.menuMode = systray.AddMenuItem(modeTitle(t.mode), "Active detection mode")
	t.menuMode.Disable()
	t.menuLast = systray.AddMenuItem("Last: none", "Last command")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	for _, entry := range menuEntries {
		if entry == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(entry.title, entry.tooltip)
		go t.listen(item, entry.cmd)
	}
}

// listen forwards clicks on item until the tray quits.
func (t *Tray) listen(item *systray.MenuItem, cmd inspect.Command) {
	for range item.ClickedCh {
		if !t.dispatch(cmd) {
			return
		}
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// dispatch submits cmd and reports whether the menu should keep listening.
func (t *Tray) dispatch(cmd inspect.Command) bool {
	ok := t.submit != nil && t.submit(cmd)

	t.mu.Lock()
	if !ok {
		t.dropped++
	}
	last := t.menuLast
	t.mu.Unlock()

	if last != nil {
		if ok {
			last.SetTitle("Last: " + cmd.String())
		} else {
			last.SetTitle("Last: " + cmd.String() + " (busy)")
		}
	}

	if cmd == inspect.CommandQuit {
		t.quit()
		return false
	}
	return true
}

// SetMode updates the mode line of the menu.
func (t *Tray) SetMode(m inspect.Mode) {
	t.mu.Lock()
	t.mode = m
	item := t.menuMode
	t.mu.Unlock()

	if item != nil {
		item.SetTitle(modeTitle(m))
	}
}

// Mode returns the mode last shown in the menu.
func (t *Tray) Mode() inspect.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// Dropped returns how many clicks were rejected by a full command queue.
func (t *Tray) Dropped() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped
}

func modeTitle(m inspect.Mode) string {
	return fmt.Sprintf("Mode: %s", m)
}
