// Package rating implements the two-step feedback gate. The prompt is
// evaluated once per non-empty ranging tick against an external cadence
// policy; a negative answer at any step ends the cycle, two positive
// answers trigger the store redirect exactly once.
package rating

import (
	"sync"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/prefs"
)

type State int

const (
	NotAsked State = iota
	AwaitingStepOne
	AwaitingStepTwo
	Declined
	Completed
)

func (s State) String() string {
	switch s {
	case NotAsked:
		return "NOT_ASKED"
	case AwaitingStepOne:
		return "AWAITING_STEP_ONE"
	case AwaitingStepTwo:
		return "AWAITING_STEP_TWO"
	case Declined:
		return "DECLINED"
	case Completed:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

const (
	StepOne = 1
	StepTwo = 2
)

// Policy decides whether the prompt may be shown this cycle.
type Policy interface {
	ShouldPrompt() bool
	MarkOngoing()
	MarkSeen()
}

// View receives presentation requests. ShowStep with visible=false
// renders as the dialog being dismissed.
type View interface {
	ShowStep(step int, visible bool)
	RedirectToStore()
}

type Prompt struct {
	policy Policy
	view   View
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

func NewPrompt(policy Policy, view View, logger zerolog.Logger) *Prompt {
	return &Prompt{
		policy: policy,
		view:   view,
		logger: logger,
		state:  NotAsked,
	}
}

func (p *Prompt) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Evaluate runs once per non-empty ranging tick.
func (p *Prompt) Evaluate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != NotAsked {
		return
	}
	if !p.policy.ShouldPrompt() {
		return
	}

	p.policy.MarkOngoing()
	p.state = AwaitingStepOne
	p.logger.Debug().Msg("rating prompt eligible, requesting step one")
	p.view.ShowStep(StepOne, true)
}

// OnAnswer handles the user's reply to a step.
func (p *Prompt) OnAnswer(step int, answer bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != AwaitingStepOne && p.state != AwaitingStepTwo {
		return
	}

	if !answer {
		p.policy.MarkSeen()
		p.state = Declined
		p.view.ShowStep(step, false)
		return
	}

	switch step {
	case StepOne:
		p.state = AwaitingStepTwo
		p.view.ShowStep(StepTwo, true)
	case StepTwo:
		p.policy.MarkSeen()
		p.state = Completed
		p.view.RedirectToStore()
		p.view.ShowStep(step, false)
	}
}

// PrefsPolicy is the default cadence policy: prompt once per cycle,
// after MinTicks non-empty ranging ticks, unless the prompt was already
// seen or is ongoing.
type PrefsPolicy struct {
	prefs    prefs.Prefs
	minTicks int64
}

func NewPrefsPolicy(p prefs.Prefs, minTicks int64) *PrefsPolicy {
	return &PrefsPolicy{prefs: p, minTicks: minTicks}
}

func (p *PrefsPolicy) ShouldPrompt() bool {
	if p.prefs.RatingPopupSeen() || p.prefs.RatingOngoing() {
		return false
	}
	ticks := p.prefs.RatingTickCount() + 1
	p.prefs.SetRatingTickCount(ticks)
	return ticks >= p.minTicks
}

func (p *PrefsPolicy) MarkOngoing() {
	p.prefs.SetRatingOngoing(true)
}

func (p *PrefsPolicy) MarkSeen() {
	p.prefs.SetRatingOngoing(false)
	p.prefs.SetRatingPopupSeen(true)
}

var _ Policy = (*PrefsPolicy)(nil)
