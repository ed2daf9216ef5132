package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
)

// SplitPartialVnode is identical in shape to BsearchPartialVnode; the only
// difference is that its dnode can split, which is why it needs to carry a
// backend reference (to register itself for retargeting) instead of being
// stateless glue — grounded on original_source's split_partial.py
// SplitPartialVnode, minus the weakref bookkeeping (see SplitPartialBackend).
type SplitPartialVnode struct {
	version Version
	dnode   *dnode.SplitPartial
	backend *SplitPartialBackend
}

func newSplitPartialVnode(b *SplitPartialBackend, version Version, d *dnode.SplitPartial) *SplitPartialVnode {
	vn := &SplitPartialVnode{version: version, dnode: d, backend: b}
	if version.IsHead() {
		b.headVnodes[d] = append(b.headVnodes[d], vn)
	}
	return vn
}

func (v *SplitPartialVnode) Backend() Backend { return v.backend }
func (v *SplitPartialVnode) Version() Version { return v.version }

func (v *SplitPartialVnode) Get(field string) (any, error) {
	result, err := v.dnode.Get(field, partialVersionToken(v.version))
	if err != nil {
		return nil, translateDnodeGetErr(err)
	}
	if nested, ok := result.(*dnode.SplitPartial); ok {
		return newSplitPartialVnode(v.backend, v.version, nested), nil
	}
	return result, nil
}

func (v *SplitPartialVnode) Set(field string, value any) error {
	if !v.version.IsHead() {
		return invariant("can only set fields on a head version")
	}
	value, err := resolveSetValue(v.Backend(), v.version, value)
	if err != nil {
		return err
	}
	if vn, ok := value.(*SplitPartialVnode); ok {
		value = vn.dnode
	}
	if err := v.dnode.Set(field, value, partialVersionToken(v.version), v.backend.retarget); err != nil {
		common.Assertf(false, "split-partial dnode set out of order: %v", err)
	}
	return nil
}

func (v *SplitPartialVnode) Delete(field string) error {
	if !v.version.IsHead() {
		return invariant("can only delete fields on a head version")
	}
	if err := v.dnode.Delete(field, partialVersionToken(v.version), v.backend.retarget); err != nil {
		common.Assertf(false, "split-partial dnode delete out of order: %v", err)
	}
	return nil
}

func (v *SplitPartialVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *SplitPartialVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal compares the underlying dnode and version, not object identity, for
// the same reason as BsearchPartialVnode.Equal.
func (v *SplitPartialVnode) Equal(other Vnode) bool {
	o, ok := other.(*SplitPartialVnode)
	return ok && o.dnode == v.dnode && o.version == v.version
}

// SplitPartialBackend is partial persistence whose dnodes periodically split
// to bound per-field log length — grounded on split_partial.py
// SplitPartialBackend/SplitPartialDnode.
//
// original_source tracks, per dnode, a WeakSet of the head vnodes currently
// wrapping it (_vnode_backrefs), so a split can retarget exactly those. Go
// has no convenient weak collection, so headVnodes is a plain map keyed by
// dnode pointer; entries for dnodes nobody references anymore are simply
// never looked up again rather than reclaimed. spec.md's own design notes
// (§9, "indexed arenas... sidesteps the source's mix of strong, weak, and
// back-reference pointers") sanction exactly this trade, and GC of
// unreachable state is an explicit non-goal.
type SplitPartialBackend struct {
	head       *partialHead
	headVnodes map[*dnode.SplitPartial][]*SplitPartialVnode
}

// NewSplitPartialBackend returns a backend with its single head already
// created at token 0.
func NewSplitPartialBackend() *SplitPartialBackend {
	b := &SplitPartialBackend{headVnodes: map[*dnode.SplitPartial][]*SplitPartialVnode{}}
	b.head = &partialHead{backend: b, newNode: func(h *partialHead) Vnode {
		return newSplitPartialVnode(b, h, dnode.NewSplitPartial())
	}}
	return b
}

func (b *SplitPartialBackend) IsVnode(value any) bool {
	_, ok := value.(*SplitPartialVnode)
	return ok
}

// retarget is dnode.OnHeadRetarget: when a dnode splits, every head vnode
// object the backend handed out for it must start reading/writing through
// the continuation dnode instead. The chain reaction across dnodes that
// forward-reference the split one is already handled inside
// dnode.SplitPartial.split; this callback only fixes up backend-level vnode
// handles.
func (b *SplitPartialBackend) retarget(old, next *dnode.SplitPartial) {
	vnodes := b.headVnodes[old]
	if len(vnodes) == 0 {
		return
	}
	delete(b.headVnodes, old)
	for _, vn := range vnodes {
		vn.dnode = next
	}
	b.headVnodes[next] = append(b.headVnodes[next], vnodes...)
}

func (b *SplitPartialBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
	head, err := validateCommitInput(b, vnodes)
	if err != nil {
		return nil, nil, err
	}
	if head == nil {
		return &partialCommit{backend: b, tok: 0}, nil, nil
	}
	commit := &partialCommit{backend: b, tok: b.head.tok}
	result := make([]Vnode, len(vnodes))
	for i, vn := range vnodes {
		sv := vn.(*SplitPartialVnode)
		result[i] = &SplitPartialVnode{version: commit, dnode: sv.dnode, backend: b}
	}
	b.head.tok++
	return commit, result, nil
}

func (b *SplitPartialBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
	if err := validateBranchInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	if len(vnodes) == 0 {
		return b.head, nil, nil
	}
	return nil, nil, unsupported("partially persistent backends cannot branch from a commit")
}
