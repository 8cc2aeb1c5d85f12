package orchestrator

import (
	"fmt"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// mergeTree is the position-indexed aggregation tree used at the tx, block
// and checkpoint levels. Its shape follows circuits.WonkyLevels: a trailing
// odd node is carried to the next level as the same slot, so only real
// merges own a slot of their own. The top level holds the one or two
// nodes the scope root consumes.
type mergeTree struct {
	levels [][]*slot
	// merged[l][i] is true when levels[l][i] is a merge of two children.
	merged [][]bool
}

func newMergeTree(prefix string, leaves int) *mergeTree {
	counts := circuits.WonkyLevels(leaves)
	t := &mergeTree{
		levels: make([][]*slot, len(counts)),
		merged: make([][]bool, len(counts)),
	}
	for l, n := range counts {
		t.levels[l] = make([]*slot, n)
		t.merged[l] = make([]bool, n)
		for i := 0; i < n; i++ {
			switch {
			case l == 0:
				t.levels[l][i] = newSlot(fmt.Sprintf("%s/leaf-%d", prefix, i), i)
			case 2*i+1 < counts[l-1]:
				t.levels[l][i] = newSlot(fmt.Sprintf("%s/merge-%d-%d", prefix, l, i), i)
				t.merged[l][i] = true
			default:
				t.levels[l][i] = t.levels[l-1][2*i]
			}
		}
	}
	return t
}

func (t *mergeTree) leaf(i int) *slot {
	return t.levels[0][i]
}

// top returns the slots the scope root consumes, in order.
func (t *mergeTree) top() []*slot {
	if len(t.levels) == 0 {
		return nil
	}
	return t.levels[len(t.levels)-1]
}

func (t *mergeTree) topReady() bool {
	for _, s := range t.top() {
		if !s.ready() {
			return false
		}
	}
	return true
}

// topResults returns the results of the top slots. Call only when topReady.
func (t *mergeTree) topResults() []circuits.Result {
	top := t.top()
	out := make([]circuits.Result, len(top))
	for i, s := range top {
		out[i] = *s.result
	}
	return out
}

type mergeStep struct {
	parent      *slot
	left, right *slot
}

// readyMerges lists the merges whose children are both Ready and which
// have not been requested yet.
func (t *mergeTree) readyMerges() []mergeStep {
	var steps []mergeStep
	for l := 1; l < len(t.levels); l++ {
		for i, parent := range t.levels[l] {
			if !t.merged[l][i] || parent.status != StatusEmpty {
				continue
			}
			left, right := t.levels[l-1][2*i], t.levels[l-1][2*i+1]
			if left.ready() && right.ready() {
				steps = append(steps, mergeStep{parent: parent, left: left, right: right})
			}
		}
	}
	return steps
}
