package causality

import "fmt"

// ResolutionState is a step of a single token resolution
type ResolutionState string

const (
	StateStart            ResolutionState = "start"
	StateSaleResolution   ResolutionState = "sale_resolution"
	StateViewerResolution ResolutionState = "viewer_resolution"
	StateBidderLookup     ResolutionState = "bidder_lookup"
	StatePolicyDecision   ResolutionState = "policy_decision"
	StateEncode           ResolutionState = "encode"
	StateDone             ResolutionState = "done"
	StateFailed           ResolutionState = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s ResolutionState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// resolutionTransitions lists the legal forward steps. Failed is reachable
// from every non-terminal state and is handled separately.
var resolutionTransitions = map[ResolutionState]map[ResolutionState]struct{}{
	StateStart: {
		StateSaleResolution: {},
	},
	StateSaleResolution: {
		StateViewerResolution: {},
		StatePolicyDecision:   {},
	},
	StateViewerResolution: {
		StateBidderLookup:   {},
		StatePolicyDecision: {},
	},
	StateBidderLookup: {
		StatePolicyDecision: {},
	},
	StatePolicyDecision: {
		StateEncode: {},
	},
	StateEncode: {
		StateDone: {},
	},
}

// resolution tracks the state of one request. It is never shared between
// requests.
type resolution struct {
	state   ResolutionState
	trace   []ResolutionState
	failure error
}

func newResolution() *resolution {
	return &resolution{
		state: StateStart,
		trace: []ResolutionState{StateStart},
	}
}

func (r *resolution) advance(to ResolutionState) error {
	if r.state.IsTerminal() {
		return derive(ErrInvalidTransition, fmt.Sprintf("resolution already %s", r.state), nil, map[string]any{
			"from": string(r.state),
			"to":   string(to),
		})
	}

	if _, ok := resolutionTransitions[r.state][to]; !ok {
		return derive(ErrInvalidTransition, "", nil, map[string]any{
			"from": string(r.state),
			"to":   string(to),
		})
	}

	r.state = to
	r.trace = append(r.trace, to)
	return nil
}

// fail moves the resolution to failed and returns err for convenience
func (r *resolution) fail(err error) error {
	if r.state.IsTerminal() {
		return err
	}
	r.state = StateFailed
	r.trace = append(r.trace, StateFailed)
	r.failure = err
	return err
}

func (r *resolution) Trace() []ResolutionState {
	out := make([]ResolutionState, len(r.trace))
	copy(out, r.trace)
	return out
}
