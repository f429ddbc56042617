package pipeline

import "fmt"

// transitionKey addresses one row of the decision table: what happened at
// which stage.
type transitionKey struct {
	Stage    string
	Category DecisionCategory
}

// Transitions is the explicit bounded state-transition table of the fixed
// stage sequence. Non-checkpoint stages advance linearly; checkpoint
// decisions select the branch. A backward jump is a revision and is
// counted by the engine against MaxRevisions.
type Transitions struct {
	order        []string
	index        map[string]int
	table        map[transitionKey]string
	maxRevisions int
}

// NewTransitions builds the table for the given stage order. branches maps
// (checkpoint stage, decision category) to the target stage name; every
// target must exist in order.
func NewTransitions(order []string, branches map[string]map[DecisionCategory]string, maxRevisions int) (*Transitions, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("transitions: empty stage order")
	}
	idx := make(map[string]int, len(order))
	for i, name := range order {
		if _, dup := idx[name]; dup {
			return nil, fmt.Errorf("transitions: duplicate stage %q", name)
		}
		idx[name] = i
	}
	table := make(map[transitionKey]string)
	for stage, row := range branches {
		if _, ok := idx[stage]; !ok {
			return nil, fmt.Errorf("transitions: branch source %q not in order", stage)
		}
		for cat, target := range row {
			if _, ok := idx[target]; !ok {
				return nil, fmt.Errorf("transitions: branch target %q not in order", target)
			}
			table[transitionKey{Stage: stage, Category: cat}] = target
		}
	}
	return &Transitions{order: order, index: idx, table: table, maxRevisions: maxRevisions}, nil
}

// First returns the entry stage.
func (t *Transitions) First() string {
	return t.order[0]
}

// MaxRevisions is the stall bound applied per checkpoint kind.
func (t *Transitions) MaxRevisions() int {
	return t.maxRevisions
}

// Next resolves the stage that follows current. cat is DecisionNone for
// non-checkpoint stages. An empty return marks the terminal boundary.
func (t *Transitions) Next(current string, cat DecisionCategory) (string, error) {
	i, ok := t.index[current]
	if !ok {
		return "", fmt.Errorf("transitions: unknown stage %q", current)
	}
	if target, ok := t.table[transitionKey{Stage: current, Category: cat}]; ok {
		return target, nil
	}
	// Decisions without an explicit row fall through to the linear
	// successor (e.g. claims_review approve and flag both continue).
	if i+1 >= len(t.order) {
		return "", nil
	}
	return t.order[i+1], nil
}

// IsBackward reports whether moving from -> to re-enters an earlier stage,
// which the engine counts as one revision.
func (t *Transitions) IsBackward(from, to string) bool {
	fi, ok := t.index[from]
	if !ok {
		return false
	}
	ti, ok := t.index[to]
	if !ok {
		return false
	}
	return ti < fi
}
