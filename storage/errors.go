// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage defines the read/write transaction capability
// (spec.md §9, "Polymorphism over storage backend") consumed by the
// rest of the consensus core, and a snapshot/serializable in-memory
// implementation for tests and single-process deployments. Grounded
// on teacher's github.com/luxfi/database usage pattern
// (engine/dag/state/state.go, uptime/test_state.go) for the
// ErrNotFound sentinel and the read-tx/write-tx split.
package storage

import (
	"errors"

	db "github.com/luxfi/database"
)

// ErrNotFound is re-exported from github.com/luxfi/database so that
// callers can keep using the same sentinel across the storage
// boundary, matching teacher's uptime/test_state.go.
var ErrNotFound = db.ErrNotFound

var (
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrSubstateDown  = errors.New("storage: substate is down")
)
