// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

// AbortReason enumerates why a transaction was decided Abort. Kept as
// a small tagged enum (not a string) per spec.md §9's error-type
// design note.
type AbortReason uint8

const (
	AbortReasonNone AbortReason = iota
	AbortReasonLockConflict
	AbortReasonExecutionFailure
	AbortReasonForeignShardGroupDecidedToAbort
	AbortReasonInputsDown
)

func (r AbortReason) String() string {
	switch r {
	case AbortReasonLockConflict:
		return "LockConflict"
	case AbortReasonExecutionFailure:
		return "ExecutionFailure"
	case AbortReasonForeignShardGroupDecidedToAbort:
		return "ForeignShardGroupDecidedToAbort"
	case AbortReasonInputsDown:
		return "InputsDown"
	default:
		return "None"
	}
}

// Decision is Commit | Abort(reason), spec.md §3.
type Decision struct {
	IsAbort bool
	Reason  AbortReason
}

func Commit() Decision { return Decision{} }

func Abort(reason AbortReason) Decision { return Decision{IsAbort: true, Reason: reason} }

func (d Decision) String() string {
	if d.IsAbort {
		return "Abort(" + d.Reason.String() + ")"
	}
	return "Commit"
}

// And implements current_decision = remote.and(local): any Abort
// wins, and once a side is Abort its reason is preserved.
func (d Decision) And(other Decision) Decision {
	if d.IsAbort {
		return d
	}
	if other.IsAbort {
		return other
	}
	return Commit()
}

// TransactionAtom is the unit of cross-shard transaction information
// embedded in a block command (spec.md §3).
type TransactionAtom struct {
	TransactionID TransactionID
	Decision      Decision
	Evidence      Evidence
	TransactionFee uint64
	LeaderFee      *uint64
}
