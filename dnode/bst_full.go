package dnode

import "github.com/arborix/timetree/predecessor"

// BSTFull is a full-persistence dnode whose per-field log is a predecessor
// dictionary (splay tree) instead of a sorted slice, trading BsearchFull's
// O(log n) binary search plus O(n) slice-insert for an amortised O(log n)
// insert too — grounded on original_source's bst_linearized_full.py
// BSTLinearizedFullDnode, which layers the same branch-isolation splice as
// BsearchFull on top of util/predecessor.py's SplayPredecessorDict.
//
// Token satisfies predecessor.Key[Token] directly (Less/Equal), so no
// adapter type is needed between the two packages.
type BSTFull struct {
	v0   LinearToken
	mods map[string]*predecessor.Dict[Token, any]
}

// NewBSTFull returns an empty dnode. v0 is the backend's earliest sentinel
// token: the first time a field is set, its dictionary is seeded with a
// "deleted" floor entry at v0 so GetPred always finds something.
func NewBSTFull(v0 LinearToken) *BSTFull {
	return &BSTFull{v0: v0, mods: map[string]*predecessor.Dict[Token, any]{}}
}

// Get returns the value field held as of tok.
func (d *BSTFull) Get(field string, tok Token) (any, error) {
	mods, ok := d.mods[field]
	if !ok {
		return nil, ErrNeverCreated
	}
	result, ok := mods.GetPred(tok)
	if !ok {
		return nil, ErrNotYetCreated
	}
	if result == deletedMarker {
		return nil, ErrFieldDeleted
	}
	return result, nil
}

// Set records value for field, effective starting at tok, splicing in a
// restorative mod at tok.Next() so any branch created strictly after tok
// keeps observing the pre-Set value.
func (d *BSTFull) Set(field string, value any, tok LinearToken) error {
	mods, ok := d.mods[field]
	if !ok {
		mods = predecessor.NewDict[Token, any]()
		mods.Set(d.v0, deletedMarker)
		d.mods[field] = mods
	}

	oldVal, _ := mods.GetPred(tok.Next())
	mods.Set(tok, value)
	mods.Set(tok.Next(), oldVal)
	return nil
}

// Delete marks field as deleted starting at tok.
func (d *BSTFull) Delete(field string, tok LinearToken) error {
	return d.Set(field, deletedMarker, tok)
}
