package entitlement

import (
	"context"
	"sync"

	"github.com/dmitrymomot/planguard/pkg/statemachine"
)

type promptState string

type promptEvent string

const (
	promptClosed promptState = "closed"
	promptOpen   promptState = "open"

	promptDenied      promptEvent = "denied"
	promptDismissed   promptEvent = "dismissed"
	promptPlanChanged promptEvent = "plan_changed"
)

// PromptSnapshot is what a UI renders for the upgrade prompt.
type PromptSnapshot struct {
	Open          bool   `json:"open"`
	FeatureKey    string `json:"feature_key,omitempty"`
	FeatureLabel  string `json:"feature_label,omitempty"`
	LimitAtDenial Value  `json:"limit_at_denial"`
}

// UpgradePrompt tracks the upgrade prompt shown after a denied action.
// It opens on a denial and closes on dismissal or a plan change; opening it
// again while open is rejected so a second denial never replaces the first.
type UpgradePrompt struct {
	mu      sync.Mutex
	machine *statemachine.Machine[promptState, promptEvent]
	current PromptSnapshot
}

func NewUpgradePrompt() *UpgradePrompt {
	p := &UpgradePrompt{}
	p.machine = statemachine.MustNew(promptClosed,
		statemachine.WithTransition(promptClosed, promptOpen, promptDenied,
			statemachine.WithGuard[promptState, promptEvent](func(_ context.Context, _ promptState, _ promptEvent, data any) bool {
				d, ok := data.(Decision)
				return ok && !d.Allowed
			}),
		),
		statemachine.WithTransition[promptState, promptEvent](promptOpen, promptClosed, promptDismissed),
		statemachine.WithTransition[promptState, promptEvent](promptOpen, promptClosed, promptPlanChanged),
	)
	return p
}

// Open shows the prompt for a denied decision. label defaults to Label(d.FeatureKey).
// It fails with ErrFeatureAllowed for allowed decisions and with a statemachine
// error when the prompt is already open.
func (p *UpgradePrompt) Open(ctx context.Context, d Decision, label string) error {
	if d.Allowed {
		return ErrFeatureAllowed
	}
	if label == "" {
		label = Label(d.FeatureKey)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.machine.Fire(ctx, promptDenied, d); err != nil {
		return err
	}
	p.current = PromptSnapshot{
		Open:          true,
		FeatureKey:    d.FeatureKey,
		FeatureLabel:  label,
		LimitAtDenial: d.Limit,
	}
	return nil
}

// Dismiss closes the prompt.
func (p *UpgradePrompt) Dismiss(ctx context.Context) error {
	return p.close(ctx, promptDismissed)
}

// PlanChanged closes the prompt after the subscriber's plan changed.
func (p *UpgradePrompt) PlanChanged(ctx context.Context) error {
	return p.close(ctx, promptPlanChanged)
}

func (p *UpgradePrompt) close(ctx context.Context, e promptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.machine.Fire(ctx, e, nil); err != nil {
		return err
	}
	p.current = PromptSnapshot{}
	return nil
}

func (p *UpgradePrompt) IsOpen() bool {
	return p.machine.Current() == promptOpen
}

func (p *UpgradePrompt) Snapshot() PromptSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
