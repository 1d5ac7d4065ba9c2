package workflow

import (
	"context"
	"sync"
)

// Facts are what the evaluation guards know about the record being
// evaluated. The evaluator fills them in as it learns them.
type Facts struct {
	// Sound is true when the record carries a bill and an amount
	Sound bool

	// TierKnown is true when the employee tier resolved against the catalog
	TierKnown bool
}

type factsKey struct{}

// WithFacts attaches facts to ctx for the evaluation guards
func WithFacts(ctx context.Context, facts *Facts) context.Context {
	return context.WithValue(ctx, factsKey{}, facts)
}

func factsFrom(ctx context.Context) *Facts {
	facts, _ := ctx.Value(factsKey{}).(*Facts)
	if facts == nil {
		return &Facts{}
	}
	return facts
}

func recordSound(ctx context.Context) bool {
	return factsFrom(ctx).Sound
}

func tierKnown(ctx context.Context) bool {
	return factsFrom(ctx).TierKnown
}

// evaluation is built on first use. The per-record lifecycle:
//
//	START -VALIDATE-> VALIDATED -EXTRACT-> EXTRACTED -CHECK-> CHECKED -FINISH-> DONE
//
// VALIDATE requires a sound record and CHECK a known tier; a rejected
// guard leaves the machine where it was. ABORT short-circuits to DONE from
// START (structural failure) and from EXTRACTED (unknown tier). No other
// state may abort.
var evaluation = sync.OnceValue(newEvaluation)

func newEvaluation() StateMachineBuilder {
	builder := NewBuilder()

	builder.Configure(StateStart).
		PermitIf(TriggerValidate, StateValidated, recordSound).
		Permit(TriggerAbort, StateDone)

	builder.Configure(StateValidated).
		Permit(TriggerExtract, StateExtracted)

	builder.Configure(StateExtracted).
		PermitIf(TriggerCheck, StateChecked, tierKnown).
		Permit(TriggerAbort, StateDone)

	builder.Configure(StateChecked).
		Permit(TriggerFinish, StateDone)

	return builder
}

// NewEvaluation starts a fresh evaluation lifecycle at StateStart
func NewEvaluation() StateMachine {
	return evaluation().Build(StateStart)
}
