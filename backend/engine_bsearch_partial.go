package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
)

// BsearchPartialVnode wraps a dnode.BsearchPartial; fields that hold another
// vnode are stored as a reference to that vnode's dnode (base_dnode.py's
// BaseDnodeBackedVnode), and rewrapped into a fresh vnode bound to the
// *reader's* own version on Get.
type BsearchPartialVnode struct {
	version Version
	dnode   *dnode.BsearchPartial
}

func (v *BsearchPartialVnode) Backend() Backend { return v.version.Backend() }
func (v *BsearchPartialVnode) Version() Version { return v.version }

func (v *BsearchPartialVnode) Get(field string) (any, error) {
	result, err := v.dnode.Get(field, partialVersionToken(v.version))
	if err != nil {
		return nil, translateDnodeGetErr(err)
	}
	if nested, ok := result.(*dnode.BsearchPartial); ok {
		return &BsearchPartialVnode{version: v.version, dnode: nested}, nil
	}
	return result, nil
}

func (v *BsearchPartialVnode) Set(field string, value any) error {
	if !v.version.IsHead() {
		return invariant("can only set fields on a head version")
	}
	value, err := resolveSetValue(v.Backend(), v.version, value)
	if err != nil {
		return err
	}
	if vn, ok := value.(*BsearchPartialVnode); ok {
		value = vn.dnode
	}
	if err := v.dnode.Set(field, value, partialVersionToken(v.version)); err != nil {
		common.Assertf(false, "partial dnode set out of order: %v", err)
	}
	return nil
}

func (v *BsearchPartialVnode) Delete(field string) error {
	if !v.version.IsHead() {
		return invariant("can only delete fields on a head version")
	}
	if err := v.dnode.Delete(field, partialVersionToken(v.version)); err != nil {
		common.Assertf(false, "partial dnode delete out of order: %v", err)
	}
	return nil
}

func (v *BsearchPartialVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *BsearchPartialVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal compares the underlying dnode and version, not object identity:
// Get rewraps a referenced dnode in a fresh wrapper bound to the reader's
// own version every time it's read.
func (v *BsearchPartialVnode) Equal(other Vnode) bool {
	o, ok := other.(*BsearchPartialVnode)
	return ok && o.dnode == v.dnode && o.version == v.version
}

// BsearchPartialBackend is partial persistence with a flat binary-searched
// modification log per field — grounded on original_source's
// bsearch_partial.py BsearchPartialBackend.
type BsearchPartialBackend struct {
	head *partialHead
}

// NewBsearchPartialBackend returns a backend with its single head already
// created at token 0.
func NewBsearchPartialBackend() *BsearchPartialBackend {
	b := &BsearchPartialBackend{}
	b.head = &partialHead{backend: b, newNode: func(h *partialHead) Vnode {
		return &BsearchPartialVnode{version: h, dnode: dnode.NewBsearchPartial()}
	}}
	return b
}

func (b *BsearchPartialBackend) IsVnode(value any) bool {
	_, ok := value.(*BsearchPartialVnode)
	return ok
}

func (b *BsearchPartialBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
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
		bv := vn.(*BsearchPartialVnode)
		result[i] = &BsearchPartialVnode{version: commit, dnode: bv.dnode}
	}
	b.head.tok++
	return commit, result, nil
}

func (b *BsearchPartialBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
	if err := validateBranchInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	if len(vnodes) == 0 {
		return b.head, nil, nil
	}
	return nil, nil, unsupported("partially persistent backends cannot branch from a commit")
}
