package orchestrator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// paritySubtree proves the L1 to L2 messages of an epoch. It has one base
// parity leaf per message batch of every declared checkpoint and a single
// root parity slot over all of them.
type paritySubtree struct {
	perCheckpoint int
	base          []*slot
	root          *slot
}

func newParitySubtree(prefix string, checkpoints, perCheckpoint int) *paritySubtree {
	p := &paritySubtree{
		perCheckpoint: perCheckpoint,
		base:          make([]*slot, checkpoints*perCheckpoint),
		root:          newSlot(prefix+"/parity/root", 0),
	}
	for i := range p.base {
		p.base[i] = newSlot(fmt.Sprintf("%s/parity/base-%d", prefix, i), i)
	}
	return p
}

func (p *paritySubtree) batch(checkpoint, j int) *slot {
	return p.base[checkpoint*p.perCheckpoint+j]
}

func (p *paritySubtree) baseReady() bool {
	for _, s := range p.base {
		if !s.ready() {
			return false
		}
	}
	return true
}

func (p *paritySubtree) baseResults() []circuits.ParityOutputs {
	out := make([]circuits.ParityOutputs, len(p.base))
	for i, s := range p.base {
		out[i] = *s.result.Outputs.Parity
	}
	return out
}

// padMessages zero-pads msgs to size.
func padMessages(msgs []common.Hash, size int) []common.Hash {
	out := make([]common.Hash, size)
	copy(out, msgs)
	return out
}

func (o *Orchestrator) dispatchBaseParity(e *epochState, cp *checkpointState) {
	size := o.cfg.MessagesPerBaseParity
	for j := 0; j < e.parity.perCheckpoint; j++ {
		in := &circuits.BaseParityInputs{
			Messages:   cp.messages[j*size : (j+1)*size],
			VkTreeRoot: cp.constants.VkTreeRoot,
		}
		o.dispatch(e, e.parity.batch(cp.index, j), circuits.KindBaseParity, circuits.Inputs{BaseParity: in},
			func(circuits.Result) error {
				o.maybeScheduleRootParity(e)
				return nil
			},
			func(f *JobFailure) { o.failCheckpoint(e, cp, f) })
	}
}

func (o *Orchestrator) maybeScheduleRootParity(e *epochState) {
	if e.failed() || len(e.checkpoints) < e.checkpointCount || e.parity.root.status != StatusEmpty || !e.parity.baseReady() {
		return
	}
	in := &circuits.RootParityInputs{Children: e.parity.baseResults()}
	o.dispatch(e, e.parity.root, circuits.KindRootParity, circuits.Inputs{RootParity: in},
		func(circuits.Result) error {
			o.maybeScheduleRootRollup(e)
			return nil
		},
		func(f *JobFailure) { o.failEpoch(e, f) })
}
