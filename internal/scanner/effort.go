package scanner

import (
	"fmt"
	"time"

	"github.com/grossrc/DigiKey-Organizer/internal/preprocess"
)

// Mode selects how quickly a session trades latency for decode effort.
type Mode string

const (
	ModeFast       Mode = "fast"
	ModeBalanced   Mode = "balanced"
	ModeAggressive Mode = "aggressive"
)

// ParseMode validates a mode name from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFast, ModeBalanced, ModeAggressive:
		return Mode(s), nil
	case "":
		return ModeBalanced, nil
	}
	return "", fmt.Errorf("unknown scan mode %q", s)
}

// schedule returns the mode's starting level, escalation interval, and
// level ceiling.
func (m Mode) schedule() (preprocess.Level, time.Duration, preprocess.Level) {
	switch m {
	case ModeFast:
		return 0, 2500 * time.Millisecond, 3
	case ModeAggressive:
		return 1, time.Second, preprocess.MaxLevel
	default: // balanced
		return 0, 1800 * time.Millisecond, preprocess.MaxLevel
	}
}

// Escalator raises the effort level by one step each time the escalation
// interval passes without an accepted decode. The level never regresses
// within a session.
type Escalator struct {
	level preprocess.Level
	max   preprocess.Level
	every time.Duration
	last  time.Time
	now   func() time.Time
}

func NewEscalator(mode Mode) *Escalator {
	start, every, max := mode.schedule()
	now := time.Now
	return &Escalator{level: start, max: max, every: every, last: now(), now: now}
}

// Level returns the current effort level.
func (e *Escalator) Level() preprocess.Level {
	return e.level
}

// Advance escalates by at most one level if the interval has elapsed.
// Callers invoke it once per frame while no decode has been accepted.
func (e *Escalator) Advance() {
	if e.now().Sub(e.last) <= e.every {
		return
	}
	if e.level < e.max {
		e.level++
	}
	e.last = e.now()
}
