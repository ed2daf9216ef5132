package backend

import (
	"errors"

	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
)

// resolveSetValue implements invariant V3 (base.py's BaseVnode.set default
// body): if value is itself a vnode, it must belong to this backend and be
// bound to owner's exact version. Non-vnode values pass through untouched.
// Value is returned unchanged (still a Vnode) — callers that need the raw
// dnode do their own type assertion afterward, since the concrete vnode type
// (and hence its dnode field) differs per engine.
func resolveSetValue(b Backend, owner Version, value any) (any, error) {
	vn, ok := value.(Vnode)
	if !ok || common.IsNil(vn) {
		return value, nil
	}
	if !b.IsVnode(vn) {
		return nil, invariant("value vnode belongs to a different backend")
	}
	if vn.Version() != owner {
		return nil, invariant("value vnode is bound to a different version than the setter")
	}
	return value, nil
}

// translateDnodeGetErr maps dnode's lookup-failure sentinels onto the
// backend's public NotFound kind; any other error out of a dnode Get
// indicates a broken invariant this package itself is responsible for
// maintaining, so it panics rather than propagating.
func translateDnodeGetErr(err error) error {
	switch {
	case errors.Is(err, dnode.ErrNeverCreated), errors.Is(err, dnode.ErrNotYetCreated), errors.Is(err, dnode.ErrFieldDeleted):
		return notFound("%v", err)
	default:
		common.Assertf(false, "unexpected dnode error: %v", err)
		return nil
	}
}

// commitSingle and branchSingle back every engine's Vnode.Commit/Branch
// convenience methods — base.py's BaseVnode.commit/branch.
func commitSingle(v Vnode) (Vnode, error) {
	_, vnodes, err := v.Backend().Commit([]Vnode{v})
	if err != nil {
		return nil, err
	}
	return vnodes[0], nil
}

func branchSingle(v Vnode) (Vnode, error) {
	_, vnodes, err := v.Backend().Branch([]Vnode{v})
	if err != nil {
		return nil, err
	}
	return vnodes[0], nil
}
