package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/ordermaintenance"
)

// timeline is the single order-maintenance sequence shared by every head and
// commit of one full-persistence backend (BsearchLinearizedFull,
// BSTLinearizedFull, or SplitLinearizedFull, whose vnodes draw their own
// tokens from it) — grounded on base_linearized_full.py's
// BaseLinearizedFullBackend, which hangs one FastLabelerList off the backend
// and hands out its tokens as version_num. v0 and vInf are permanent
// sentinels bounding every dnode's validity range.
type timeline struct {
	list *ordermaintenance.List
	v0   omToken
	vInf omToken
}

func newTimeline() *timeline {
	list := ordermaintenance.NewList()
	v0 := list.InsertAfter(nil)
	vInf := list.InsertAfter(v0)
	return &timeline{list: list, v0: omToken{t: v0}, vInf: omToken{t: vInf}}
}

// linearFullHead is a head version of a non-confluent full-persistence
// backend. Every vnode created from, or committed through, this head shares
// its single advancing token: unlike SplitLinearizedFullBackend, these two
// engines never decouple a vnode's effective version from its owning head's,
// which is exactly what makes them non-confluent (BaseDivergentBackend in
// original_source).
type linearFullHead struct {
	backend Backend
	tl      *timeline
	tok     omToken
	newNode func(h *linearFullHead) Vnode
}

func (h *linearFullHead) Backend() Backend { return h.backend }
func (h *linearFullHead) IsHead() bool     { return true }
func (h *linearFullHead) IsCommit() bool   { return false }
func (h *linearFullHead) NewNode() (Vnode, error) {
	return h.newNode(h), nil
}

type linearFullCommit struct {
	backend Backend
	tok     omToken
}

func (c *linearFullCommit) Backend() Backend { return c.backend }
func (c *linearFullCommit) IsHead() bool     { return false }
func (c *linearFullCommit) IsCommit() bool   { return true }
func (c *linearFullCommit) NewNode() (Vnode, error) {
	return nil, invariant("cannot create a node from a commit version")
}

func linearFullToken(v Version) omToken {
	switch t := v.(type) {
	case *linearFullHead:
		return t.tok
	case *linearFullCommit:
		return t.tok
	default:
		common.Assertf(false, "not a linearized-full version: %T", v)
		return omToken{}
	}
}
