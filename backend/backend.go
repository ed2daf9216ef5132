// Package backend implements the seven timetree persistence engines: the
// façade (Backend/Version/Vnode), their shared validation, and one storage
// kernel per engine (Nop, Copy, BsearchPartial, SplitPartial,
// BsearchLinearizedFull, BSTLinearizedFull, SplitLinearizedFull).
//
// This package deliberately stays single-threaded and synchronous, exactly
// as original_source's timetree.backend package: no goroutines, no locks, no
// context.Context. A Backend value (and everything reachable from it) must
// not be used from more than one goroutine at a time.
package backend

// Token is the ordering key a Version carries. Partial engines use a plain
// sequence number; full engines use an order-maintenance token that can be
// densely inserted between any two existing tokens. The concrete tokens
// (seqToken, omToken) are written against the identically shaped
// dnode.Token, whose methods take a dnode.Token, so they do not satisfy this
// interface; nothing in the package uses Token directly.
type Token interface {
	Less(other Token) bool
	Equal(other Token) bool
}

// Version is a point in a backend's version DAG: either a head (mutable,
// can create new vnodes and accept writes) or a commit (frozen).
type Version interface {
	Backend() Backend
	IsHead() bool
	IsCommit() bool
	// NewNode creates a fresh vnode bound to this version. Returns
	// InvariantViolation if this version is not a head.
	NewNode() (Vnode, error)
}

// Vnode is one versioned, field-addressable node of a backend's pointer
// machine.
type Vnode interface {
	Backend() Backend
	Version() Version
	// Get returns the value field held in this vnode's version. Returns
	// NotFound if the field was never set, or was deleted, as of this
	// version.
	Get(field string) (any, error)
	// Set assigns value to field. Returns InvariantViolation if this
	// vnode's version is not a head, or if value is a vnode bound to a
	// different version.
	Set(field string, value any) error
	// Delete removes field. Returns InvariantViolation if this vnode's
	// version is not a head.
	Delete(field string) error
	// Commit is shorthand for Backend().Commit([]Vnode{v}) that unwraps the
	// single resulting vnode.
	Commit() (Vnode, error)
	// Branch is shorthand for Backend().Branch([]Vnode{v}) that unwraps the
	// single resulting vnode.
	Branch() (Vnode, error)
	// Equal reports whether other denotes the same node in the same version
	// as v. The dnode-backed engines allocate a fresh wrapper every time Get
	// returns a nested vnode, so two Vnode values can be Go-distinct objects
	// yet refer to the same logical node; Equal, not ==, is how callers must
	// check identity (mirrors spec.md's P5: `ca.get("ptr") == cb`).
	Equal(other Vnode) bool
}

// Backend is a persistence engine: a pool of versions plus the two
// operations (Commit, Branch) that grow its version DAG.
type Backend interface {
	// IsVnode reports whether value is a Vnode belonging to this backend.
	IsVnode(value any) bool
	// Commit freezes the given vnodes' shared head version into a new
	// commit, sharing that commit's parents, and returns the commit plus
	// copies of vnodes rebound to it. An empty/nil vnodes returns the base
	// commit. Every vnode must be bound to the same head.
	Commit(vnodes []Vnode) (Version, []Vnode, error)
	// Branch creates a new head as the (for confluent engines: possibly
	// disjoint-unioned) copy of the commits the given vnodes belong to, and
	// returns the head plus copies of vnodes rebound to it. An empty/nil
	// vnodes branches from the base commit; the partial engines instead
	// return their single existing head, and NopBackend creates its one head
	// on the first such call and refuses later ones. Every vnode must be
	// bound to a commit (not a head). Non-confluent engines additionally
	// require every vnode to share the same commit; the partial engines
	// refuse any vnodes at all.
	Branch(vnodes []Vnode) (Version, []Vnode, error)
}

// validateCommitInput mirrors BaseBackend.commit's default sanitization: it
// returns the shared head version of vnodes (nil if vnodes is empty, meaning
// "the base commit").
func validateCommitInput(b Backend, vnodes []Vnode) (Version, error) {
	if len(vnodes) == 0 {
		return nil, nil
	}
	for _, v := range vnodes {
		if !b.IsVnode(v) {
			return nil, invariant("value is not a vnode of this backend")
		}
	}
	head := vnodes[0].Version()
	for _, v := range vnodes {
		if v.Version() != head {
			return nil, invariant("vnodes passed to Commit must all share one head version")
		}
	}
	if !head.IsHead() {
		return nil, invariant("vnode version is not a head")
	}
	return head, nil
}

// validateBranchInput mirrors BaseBackend.branch's default sanitization.
func validateBranchInput(b Backend, vnodes []Vnode) error {
	for _, v := range vnodes {
		if !b.IsVnode(v) {
			return invariant("value is not a vnode of this backend")
		}
		if !v.Version().IsCommit() {
			return invariant("vnode version is not a commit")
		}
	}
	return nil
}

// requireSingleCommit additionally enforces the non-confluent-engine rule
// that every input vnode shares the same commit (BaseDivergentBackend._branch
// in original_source). Only the Bsearch and BST linearized-full engines call
// it: CopyBackend and SplitLinearizedFullBackend accept vnodes from several
// commits, and the partial and Nop engines refuse commit input outright.
func requireSingleCommit(vnodes []Vnode) error {
	if len(vnodes) == 0 {
		return nil
	}
	commit := vnodes[0].Version()
	for _, v := range vnodes {
		if v.Version() != commit {
			return invariant("this engine cannot branch from more than one commit at once")
		}
	}
	return nil
}
