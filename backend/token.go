package backend

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/dnode"
	"github.com/arborix/timetree/ordermaintenance"
)

// seqToken is the version token used by partial engines: partial
// persistence only ever has one linear history per backend, so a plain
// monotonically increasing sequence number totally orders it — grounded on
// original_source's base_partial.py PartialHead.version_num, a plain int.
type seqToken int64

func (t seqToken) Less(other dnode.Token) bool  { return t < other.(seqToken) }
func (t seqToken) Equal(other dnode.Token) bool { return t == other.(seqToken) }

// omToken is the version token used by the linearized-full engines: an
// order-maintenance token, giving O(1) comparison across a version DAG that
// keeps growing new branch points — grounded on original_source's
// util/order_maintenance.py FastLabelerNode, which base_linearized_full.py
// uses directly as its version_num.
type omToken struct {
	t *ordermaintenance.Token
}

func (o omToken) Less(other dnode.Token) bool {
	return o.t.Less(other.(omToken).t)
}

func (o omToken) Equal(other dnode.Token) bool {
	return o.t.Equal(other.(omToken).t)
}

func (o omToken) Next() dnode.LinearToken {
	next := o.t.Next()
	common.Assertf(next != nil, "Next() called on the final version token")
	return omToken{t: next}
}
