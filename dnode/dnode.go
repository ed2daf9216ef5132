// Package dnode implements the fat-node ("dnode") data structures that back
// every timetree engine's per-entity modification log. Each dnode stores,
// per field name, the history of values that field has held across
// versions, and answers "what was field X at version T" — translated from
// original_source's backend/base_dnode.py and its five concrete
// specializations (bsearch_partial.py, split_partial.py,
// bsearch_linearized_full.py, bst_linearized_full.py,
// split_linearized_full.py).
//
// dnode knows nothing about Vnode, Version, or Backend (those live in
// package backend, which imports dnode) — it only knows how to store and
// retrieve values keyed by an opaque, totally ordered Token.
package dnode

import "errors"

// ErrNeverCreated is returned by Get when a field has no modification
// history at all.
var ErrNeverCreated = errors.New("field was never created")

// ErrNotYetCreated is returned by Get when a field exists but has no
// modification at or before the queried token.
var ErrNotYetCreated = errors.New("field not created as of this version")

// ErrFieldDeleted is returned by Get when the most recent applicable
// modification was a deletion.
var ErrFieldDeleted = errors.New("field was deleted as of this version")

// ErrOutOfOrder is returned by the partial engines' Set when a mod would be
// inserted anywhere but the end of a field's log — partial persistence only
// ever mutates at the current head.
var ErrOutOfOrder = errors.New("partial dnode can only append at the current head")

// ErrOutOfRange is returned by SplitFull when a token falls outside the
// version range the dnode currently owns (it split away from that range).
var ErrOutOfRange = errors.New("token out of range for this dnode")

// deletedMarker is a unique sentinel distinguishable from any real value,
// including nil (a field can legitimately hold nil).
type deletedMarkerType struct{}

var deletedMarker = deletedMarkerType{}

// Token is the dnode package's view of a version identifier: just enough
// structure to binary-search and compare. Concrete backend token types
// (sequence numbers for partial engines, order-maintenance tokens for full
// engines) implement it.
type Token interface {
	Less(other Token) bool
	Equal(other Token) bool
}

// LinearToken additionally knows its immediate successor in the global
// version sequence, needed by the full engines' branch-isolation splice
// (see BsearchFull.Set / BSTFull.Set).
type LinearToken interface {
	Token
	Next() LinearToken
}

// lessOrEqual reports a <= b given only Less, matching a total order.
func lessOrEqual(a, b Token) bool {
	return !b.Less(a)
}
