package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
)

// BSTLinearizedFullVnode is structurally identical to
// BsearchLinearizedFullVnode; only the dnode kind differs.
type BSTLinearizedFullVnode struct {
	version Version
	dnode   *dnode.BSTFull
}

func (v *BSTLinearizedFullVnode) Backend() Backend { return v.version.Backend() }
func (v *BSTLinearizedFullVnode) Version() Version { return v.version }

func (v *BSTLinearizedFullVnode) Get(field string) (any, error) {
	result, err := v.dnode.Get(field, linearFullToken(v.version))
	if err != nil {
		return nil, translateDnodeGetErr(err)
	}
	if nested, ok := result.(*dnode.BSTFull); ok {
		return &BSTLinearizedFullVnode{version: v.version, dnode: nested}, nil
	}
	return result, nil
}

func (v *BSTLinearizedFullVnode) Set(field string, value any) error {
	if !v.version.IsHead() {
		return invariant("can only set fields on a head version")
	}
	value, err := resolveSetValue(v.Backend(), v.version, value)
	if err != nil {
		return err
	}
	if vn, ok := value.(*BSTLinearizedFullVnode); ok {
		value = vn.dnode
	}
	if err := v.dnode.Set(field, value, linearFullToken(v.version)); err != nil {
		common.Assertf(false, "linearized-full dnode set out of order: %v", err)
	}
	return nil
}

func (v *BSTLinearizedFullVnode) Delete(field string) error {
	if !v.version.IsHead() {
		return invariant("can only delete fields on a head version")
	}
	if err := v.dnode.Delete(field, linearFullToken(v.version)); err != nil {
		common.Assertf(false, "linearized-full dnode delete out of order: %v", err)
	}
	return nil
}

func (v *BSTLinearizedFullVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *BSTLinearizedFullVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal compares the underlying dnode and version, not object identity, for
// the same reason as BsearchPartialVnode.Equal.
func (v *BSTLinearizedFullVnode) Equal(other Vnode) bool {
	o, ok := other.(*BSTLinearizedFullVnode)
	return ok && o.dnode == v.dnode && o.version == v.version
}

// BSTLinearizedFullBackend trades BsearchLinearizedFullBackend's sorted slice
// for a splay-tree predecessor dictionary per field — grounded on
// original_source's bst_linearized_full.py BSTLinearizedFullBackend. Also
// extends BaseDivergentBackend there, same as the Bsearch variant.
type BSTLinearizedFullBackend struct {
	tl *timeline
}

// NewBSTLinearizedFullBackend returns a backend with no heads yet; call
// Branch(nil) to create the first one from the base commit.
func NewBSTLinearizedFullBackend() *BSTLinearizedFullBackend {
	return &BSTLinearizedFullBackend{tl: newTimeline()}
}

func (b *BSTLinearizedFullBackend) IsVnode(value any) bool {
	_, ok := value.(*BSTLinearizedFullVnode)
	return ok
}

func (b *BSTLinearizedFullBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
	head, err := validateCommitInput(b, vnodes)
	if err != nil {
		return nil, nil, err
	}
	if head == nil {
		return &linearFullCommit{backend: b, tok: b.tl.v0}, nil, nil
	}
	h := head.(*linearFullHead)
	commit := &linearFullCommit{backend: b, tok: h.tok}
	h.tok = omToken{t: b.tl.list.InsertAfter(h.tok.t)}

	result := make([]Vnode, len(vnodes))
	for i, vn := range vnodes {
		bv := vn.(*BSTLinearizedFullVnode)
		result[i] = &BSTLinearizedFullVnode{version: commit, dnode: bv.dnode}
	}
	return commit, result, nil
}

func (b *BSTLinearizedFullBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
	if err := validateBranchInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	if err := requireSingleCommit(vnodes); err != nil {
		return nil, nil, err
	}

	commitTok := b.tl.v0
	if len(vnodes) > 0 {
		commitTok = vnodes[0].Version().(*linearFullCommit).tok
	}
	v0 := b.tl.v0
	head := &linearFullHead{
		backend: b,
		tl:      b.tl,
		tok:     omToken{t: b.tl.list.InsertAfter(commitTok.t)},
		newNode: func(h *linearFullHead) Vnode {
			return &BSTLinearizedFullVnode{version: h, dnode: dnode.NewBSTFull(v0)}
		},
	}
	if len(vnodes) == 0 {
		return head, nil, nil
	}

	result := make([]Vnode, len(vnodes))
	for i, vn := range vnodes {
		bv := vn.(*BSTLinearizedFullVnode)
		result[i] = &BSTLinearizedFullVnode{version: head, dnode: bv.dnode}
	}
	return head, result, nil
}
