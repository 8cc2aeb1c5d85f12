package circuits

import "fmt"

// JobKind identifies the circuit a proving job runs.
type JobKind uint8

const (
	KindUnknown JobKind = iota
	KindPrivateTxBaseRollup
	KindPublicTxBaseRollup
	KindEmptyTxBaseRollup
	KindTxMergeRollup
	KindBlockRootEmptyTxFirstRollup
	KindBlockRootSingleTxFirstRollup
	KindBlockRootFirstRollup
	KindBlockRootRollup
	KindBlockMergeRollup
	KindCheckpointRootSingleBlockRollup
	KindCheckpointRootRollup
	KindCheckpointMergeRollup
	KindCheckpointPaddingRollup
	KindRootRollup
	KindBaseParity
	KindRootParity
)

var kindNames = map[JobKind]string{
	KindPrivateTxBaseRollup:             "private-tx-base-rollup",
	KindPublicTxBaseRollup:              "public-tx-base-rollup",
	KindEmptyTxBaseRollup:               "empty-tx-base-rollup",
	KindTxMergeRollup:                   "tx-merge-rollup",
	KindBlockRootEmptyTxFirstRollup:     "block-root-empty-tx-first-rollup",
	KindBlockRootSingleTxFirstRollup:    "block-root-single-tx-first-rollup",
	KindBlockRootFirstRollup:            "block-root-first-rollup",
	KindBlockRootRollup:                 "block-root-rollup",
	KindBlockMergeRollup:                "block-merge-rollup",
	KindCheckpointRootSingleBlockRollup: "checkpoint-root-single-block-rollup",
	KindCheckpointRootRollup:            "checkpoint-root-rollup",
	KindCheckpointMergeRollup:           "checkpoint-merge-rollup",
	KindCheckpointPaddingRollup:         "checkpoint-padding-rollup",
	KindRootRollup:                      "root-rollup",
	KindBaseParity:                      "base-parity",
	KindRootParity:                      "root-parity",
}

// AllKinds lists every known job kind in declaration order.
func AllKinds() []JobKind {
	out := make([]JobKind, 0, len(kindNames))
	for k := KindPrivateTxBaseRollup; k <= KindRootParity; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the wire name of the kind.
func (k JobKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseJobKind is the inverse of String.
func ParseJobKind(s string) (JobKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown job kind %q", s)
}

func (k JobKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("cannot marshal job kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *JobKind) UnmarshalText(text []byte) error {
	parsed, err := ParseJobKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsTxBase reports whether the kind is one of the tx-level leaf circuits.
func (k JobKind) IsTxBase() bool {
	return k == KindPrivateTxBaseRollup || k == KindPublicTxBaseRollup || k == KindEmptyTxBaseRollup
}

// IsBlockRoot reports whether the kind closes a block.
func (k JobKind) IsBlockRoot() bool {
	switch k {
	case KindBlockRootEmptyTxFirstRollup, KindBlockRootSingleTxFirstRollup, KindBlockRootFirstRollup, KindBlockRootRollup:
		return true
	default:
		return false
	}
}

// IsCheckpointRoot reports whether the kind closes a checkpoint.
func (k JobKind) IsCheckpointRoot() bool {
	return k == KindCheckpointRootSingleBlockRollup || k == KindCheckpointRootRollup
}
