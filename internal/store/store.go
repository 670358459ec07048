// Package store provides the persistence implementations backing the freight
// core: a Postgres store for deployments and an in-memory store for tests.
// Both enforce status preconditions at commit time, so a stale caller gets a
// state-conflict error instead of silently clobbering newer state.
package store

import (
	"fmt"

	"github.com/coopcarga/backend-carga/internal/common"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = common.ErrNotFound

// ErrConflict is returned when a commit-time precondition check fails for a
// reason other than an illegal shipping transition (duplicate number, voided
// record, concurrent modification).
var ErrConflict = common.ErrConflict

func shipmentNumber(n int64) string {
	return fmt.Sprintf("F-%06d", n)
}

func manifestNumber(n int64) string {
	return fmt.Sprintf("D-%06d", n)
}

func settlementNumber(n int64) string {
	return fmt.Sprintf("R-%06d", n)
}
