package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
)

// BsearchLinearizedFullVnode wraps a dnode.BsearchFull. Unlike the partial
// engines, its dnode's log already supports writes landing anywhere in
// token order (needed because a commit frozen long ago can still spawn new
// heads), so Set simply hands the head's current token straight through.
type BsearchLinearizedFullVnode struct {
	version Version
	dnode   *dnode.BsearchFull
}

func (v *BsearchLinearizedFullVnode) Backend() Backend { return v.version.Backend() }
func (v *BsearchLinearizedFullVnode) Version() Version { return v.version }

func (v *BsearchLinearizedFullVnode) Get(field string) (any, error) {
	result, err := v.dnode.Get(field, linearFullToken(v.version))
	if err != nil {
		return nil, translateDnodeGetErr(err)
	}
	if nested, ok := result.(*dnode.BsearchFull); ok {
		return &BsearchLinearizedFullVnode{version: v.version, dnode: nested}, nil
	}
	return result, nil
}

func (v *BsearchLinearizedFullVnode) Set(field string, value any) error {
	if !v.version.IsHead() {
		return invariant("can only set fields on a head version")
	}
	value, err := resolveSetValue(v.Backend(), v.version, value)
	if err != nil {
		return err
	}
	if vn, ok := value.(*BsearchLinearizedFullVnode); ok {
		value = vn.dnode
	}
	if err := v.dnode.Set(field, value, linearFullToken(v.version)); err != nil {
		common.Assertf(false, "linearized-full dnode set out of order: %v", err)
	}
	return nil
}

func (v *BsearchLinearizedFullVnode) Delete(field string) error {
	if !v.version.IsHead() {
		return invariant("can only delete fields on a head version")
	}
	if err := v.dnode.Delete(field, linearFullToken(v.version)); err != nil {
		common.Assertf(false, "linearized-full dnode delete out of order: %v", err)
	}
	return nil
}

func (v *BsearchLinearizedFullVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *BsearchLinearizedFullVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal compares the underlying dnode and version, not object identity, for
// the same reason as BsearchPartialVnode.Equal.
func (v *BsearchLinearizedFullVnode) Equal(other Vnode) bool {
	o, ok := other.(*BsearchLinearizedFullVnode)
	return ok && o.dnode == v.dnode && o.version == v.version
}

// BsearchLinearizedFullBackend is full persistence with a flat,
// binary-searched per-field log that additionally splices a restorative mod
// so sibling branches stay isolated — grounded on original_source's
// bsearch_linearized_full.py BsearchLinearizedFullBackend. It extends
// BaseDivergentBackend there: Branch requires every input vnode to share one
// commit (requireSingleCommit), even though any number of independent heads
// may still fork off that single backend's shared timeline.
type BsearchLinearizedFullBackend struct {
	tl *timeline
}

// NewBsearchLinearizedFullBackend returns a backend with no heads yet; call
// Branch(nil) to create the first one from the base commit.
func NewBsearchLinearizedFullBackend() *BsearchLinearizedFullBackend {
	return &BsearchLinearizedFullBackend{tl: newTimeline()}
}

func (b *BsearchLinearizedFullBackend) IsVnode(value any) bool {
	_, ok := value.(*BsearchLinearizedFullVnode)
	return ok
}

func (b *BsearchLinearizedFullBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
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
		bv := vn.(*BsearchLinearizedFullVnode)
		result[i] = &BsearchLinearizedFullVnode{version: commit, dnode: bv.dnode}
	}
	return commit, result, nil
}

func (b *BsearchLinearizedFullBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
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
	head := &linearFullHead{
		backend: b,
		tl:      b.tl,
		tok:     omToken{t: b.tl.list.InsertAfter(commitTok.t)},
		newNode: func(h *linearFullHead) Vnode {
			return &BsearchLinearizedFullVnode{version: h, dnode: dnode.NewBsearchFull()}
		},
	}
	if len(vnodes) == 0 {
		return head, nil, nil
	}

	result := make([]Vnode, len(vnodes))
	for i, vn := range vnodes {
		bv := vn.(*BsearchLinearizedFullVnode)
		result[i] = &BsearchLinearizedFullVnode{version: head, dnode: bv.dnode}
	}
	return head, result, nil
}
