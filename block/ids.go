// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package block defines the consensus block, the ordered command
// list it carries, and the quorum certificate / evidence structures
// that drive the four-phase pipeline (spec.md §3, §4.3-§4.5).
package block

import (
	"encoding/hex"

	"github.com/luxfi/ids"
)

// ID is a 32-byte content hash identifying a block, transaction, or
// quorum certificate. It is defined as github.com/luxfi/ids.ID so
// that blocks, QCs and transactions share the same identifier type
// the rest of the teacher stack (validators, log fields) already
// understands.
type ID = ids.ID

// TransactionID identifies a TransactionAtom / TransactionPoolRecord.
type TransactionID = ids.ID

// NodeID identifies a validator, re-exported for convenience.
type NodeID = ids.NodeID

func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != len(id) {
		return id, errInvalidIDLength
	}
	copy(id[:], b)
	return id, nil
}

var errInvalidIDLength = idLenErr()

func idLenErr() error {
	return &idLengthError{}
}

type idLengthError struct{}

func (*idLengthError) Error() string { return "block: invalid id length" }

// HexString is a small helper matching spec.md §6's "Display form is
// lowercase hex" convention for types that don't already implement
// String().
func HexString(b []byte) string { return hex.EncodeToString(b) }
