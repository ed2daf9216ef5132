// Package ordermaintenance implements the order-maintenance problem: a
// sequence of opaque tokens that supports InsertAfter and Less in amortised
// O(1), without ever renumbering the whole sequence.
//
// The design is a direct translation of original_source's
// backend/util/order_maintenance.py FastLabelerNodeMixin/FastLabelerListMixin:
// a quadratic "upper" labeler (QuadraticLabelerNodeMixin) partitions the
// sequence into buckets, and within each bucket an exponential "lower"
// labeler (ExponentialLabelerNodeMixin) assigns midpoint labels in a fixed
// bit-width space. A token's total order key is the pair (upper label, lower
// label); comparing two tokens never requires walking the sequence. When a
// bucket's lower-label space is exhausted, the bucket reflows: its members
// are redistributed across one or more freshly labeled buckets sized from
// the sequence's current total length, exactly as reflow() does in the
// source.
//
// Go has no mixin inheritance, so where the source layers
// SizeTrackingNodeMixin/ExponentialLabelerNodeMixin/QuadraticLabelerNodeMixin
// via multiple inheritance, here a Token owns two llist ring memberships
// directly: `global` (the actual sequence, giving Next/Prev for free) and
// `lower` (bucket membership, carrying the exponential label and a pointer
// to its owning upper bucket).
package ordermaintenance

import (
	"github.com/arborix/timetree/common"
	"github.com/arborix/timetree/llist"
)

const initialCapacity = 5

// Token is one element of an ordered sequence. The zero Token is not usable;
// obtain one from List.InsertAfter.
type Token struct {
	global llist.Linkage[Token]
	lower  lowerNode
}

type lowerNode struct {
	link  llist.Linkage[lowerNode]
	label int
	upper *upperNode
}

type upperNode struct {
	link     llist.Linkage[upperNode]
	label    int
	capacity int
	lowers   llist.Head[lowerNode]
}

// List is a sequence of Tokens maintaining a total order under insertion.
type List struct {
	global llist.Head[Token]
	uppers llist.Head[upperNode]
	size   int
}

// NewList returns an empty sequence.
func NewList() *List {
	l := &List{}
	u := &upperNode{capacity: initialCapacity}
	l.uppers.PushFront(&u.link, u)
	relabelUpper(u)
	return l
}

// Len returns the number of tokens currently in the sequence.
func (l *List) Len() int {
	return l.size
}

// InsertAfter creates a new token and links it immediately after pred. A nil
// pred inserts at the front of the sequence.
func (l *List) InsertAfter(pred *Token) *Token {
	t := &Token{}

	var predGlobal *llist.Linkage[Token]
	if pred != nil {
		predGlobal = &pred.global
	}
	l.global.InsertAfter(predGlobal, &t.global, t)
	l.size++

	upper, afterLower := insertionPoint(l, pred)
	if !insertLower(upper, afterLower, &t.lower) {
		l.reflow(upper)
	}
	return t
}

// Remove removes t from the sequence. t must not be used afterward.
func (l *List) Remove(t *Token) {
	t.lower.upper.lowers.Remove(&t.lower.link)
	l.global.Remove(&t.global)
	l.size--
}

// Next returns the token immediately after t, or nil if t is last.
func (t *Token) Next() *Token {
	return llist.Next(&t.global)
}

// Prev returns the token immediately before t, or nil if t is first.
func (t *Token) Prev() *Token {
	return llist.Prev(&t.global)
}

// Less reports whether t sorts strictly before other in the sequence. Both
// must belong to the same List.
func (t *Token) Less(other *Token) bool {
	if t == other {
		return false
	}
	lu, ru := t.lower.upper.label, other.lower.upper.label
	if lu != ru {
		return lu < ru
	}
	return t.lower.label < other.lower.label
}

// Equal reports whether t and other are the same token.
func (t *Token) Equal(other *Token) bool {
	return t == other
}

func insertionPoint(l *List, pred *Token) (*upperNode, *lowerNode) {
	if pred == nil {
		return l.uppers.Front(), nil
	}
	return pred.lower.upper, &pred.lower
}

// insertLower links n into upper's bucket right after afterLower (front if
// nil), mirroring ExponentialLabelerNodeMixin.insert_self: the node is always
// linked first, and only then is its label computed, so a failed attempt
// (bucket saturated) leaves n in the ring, unlabeled, ready for reflow to
// pick up along with its bucket-mates.
func insertLower(upper *upperNode, afterLower *lowerNode, n *lowerNode) bool {
	var predLink *llist.Linkage[lowerNode]
	prevLabel := 0
	if afterLower != nil {
		predLink = &afterLower.link
		prevLabel = afterLower.label
	}

	var nextNode *lowerNode
	if afterLower != nil {
		nextNode = llist.Next(&afterLower.link)
	} else {
		nextNode = upper.lowers.Front()
	}
	nextLabel := 1 << uint(upper.capacity)
	if nextNode != nil {
		nextLabel = nextNode.label
	}

	n.upper = upper
	upper.lowers.InsertAfter(predLink, &n.link, n)

	if nextLabel-prevLabel == 1 {
		return false
	}
	n.label = (prevLabel + nextLabel) / 2
	return true
}

// reflow redistributes every lower node currently in overflow's bucket
// (including the as-yet-unlabeled node that triggered the overflow) across
// one or more freshly sized buckets, exactly as FastLabelerNodeMixin's
// except-LabelError branch does.
func (l *List) reflow(overflow *upperNode) {
	var nodes []*lowerNode
	for n := overflow.lowers.Front(); n != nil; n = llist.Next(&n.link) {
		nodes = append(nodes, n)
	}
	common.Assertf(len(nodes) > 0, "reflow invoked on an empty bucket")
	for _, n := range nodes {
		overflow.lowers.Remove(&n.link)
	}

	newCapacity := bitLen(l.size)
	if newCapacity < 2 {
		newCapacity = 2
	}
	newSize := newCapacity / 2

	overflow.capacity = newCapacity
	curUpper := overflow
	var afterInCur *lowerNode
	curSize := 0

	for _, n := range nodes {
		if curSize == newSize {
			newUpper := &upperNode{capacity: newCapacity}
			l.uppers.InsertAfter(&curUpper.link, &newUpper.link, newUpper)
			relabelUpper(newUpper)
			curUpper = newUpper
			afterInCur = nil
			curSize = 0
		}
		ok := insertLower(curUpper, afterInCur, n)
		common.Assertf(ok, "reflow redistribution ran out of labels")
		afterInCur = n
		curSize++
	}
}

// relabelUpper is QuadraticLabelerNodeMixin.insert_self: it widens the search
// window around self by powers of two (in both node count and label range)
// until the window is sparse enough, then spreads every node in the window
// evenly across the label range.
func relabelUpper(self *upperNode) {
	layer := 0
	maxNodes := 1

	minLabel := 1
	if prev := llist.Prev(&self.link); prev != nil {
		minLabel = prev.label + 1
	}
	maxLabel := minLabel

	first, last := self, self
	numNodes := 1

	for {
		for {
			p := llist.Prev(&first.link)
			if p == nil || p.label < minLabel {
				break
			}
			first = p
			numNodes++
		}
		for {
			n := llist.Next(&last.link)
			if n == nil || n.label > maxLabel {
				break
			}
			last = n
			numNodes++
		}

		if numNodes <= maxNodes {
			break
		}

		layer++
		maxNodes = 1 << uint(layer)
		mask := (1 << uint(2*layer)) - 1
		minLabel &^= mask
		maxLabel |= mask
	}

	step := (maxLabel - minLabel + 1) / maxNodes
	cur := first
	for label := minLabel; ; label += step {
		cur.label = label
		if cur == last {
			break
		}
		cur = llist.Next(&cur.link)
	}
}

func bitLen(n int) int {
	b := 0
	for n > 0 {
		b++
		n >>= 1
	}
	return b
}
