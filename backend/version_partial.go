package backend

import "github.com/arborix/timetree/common"

// partialHead and partialCommit are shared by BsearchPartialBackend and
// SplitPartialBackend — grounded on base_partial.py's PartialHead/
// PartialCommit. A partial backend has exactly one head for its entire
// lifetime; newNode is supplied by the concrete engine so this type stays
// ignorant of which dnode variant it is backing, mirroring how
// BasePartialBackend parameterizes PartialHead with vnode_cls.
type partialHead struct {
	backend Backend
	tok     seqToken
	newNode func(h *partialHead) Vnode
}

func (h *partialHead) Backend() Backend      { return h.backend }
func (h *partialHead) IsHead() bool          { return true }
func (h *partialHead) IsCommit() bool        { return false }
func (h *partialHead) NewNode() (Vnode, error) {
	return h.newNode(h), nil
}

type partialCommit struct {
	backend Backend
	tok     seqToken
}

func (c *partialCommit) Backend() Backend { return c.backend }
func (c *partialCommit) IsHead() bool     { return false }
func (c *partialCommit) IsCommit() bool   { return true }
func (c *partialCommit) NewNode() (Vnode, error) {
	return nil, invariant("cannot create a node from a commit version")
}

func partialVersionToken(v Version) seqToken {
	switch t := v.(type) {
	case *partialHead:
		return t.tok
	case *partialCommit:
		return t.tok
	default:
		common.Assertf(false, "not a partial-engine version: %T", v)
		return 0
	}
}
