package dnode

// BsearchFull is a full-persistence dnode: Set can land anywhere in a
// field's token-ordered log (not just the end), because any past version
// can be re-branched. Writing in the middle therefore has to preserve what
// every other branch still observes — grounded on original_source's
// bsearch_linearized_full.py BsearchLinearizedFullDnode.
//
// The branch-isolation trick: when Set(field, v, t) lands strictly before
// the log's current end, and there isn't already a recorded value exactly at
// t.Next(), a synthetic mod (t.Next(), oldValueAtT) is spliced in first. That
// way a branch created at any token after t but not already covered by a
// later real mod keeps observing the pre-Set value, exactly as if the Set
// had never happened on that branch.
type BsearchFull struct {
	mods map[string][]mod
}

// NewBsearchFull returns an empty dnode.
func NewBsearchFull() *BsearchFull {
	return &BsearchFull{mods: map[string][]mod{}}
}

// Get returns the value field held as of tok.
func (d *BsearchFull) Get(field string, tok Token) (any, error) {
	mods, ok := d.mods[field]
	if !ok {
		return nil, ErrNeverCreated
	}

	var result any
	if last := mods[len(mods)-1]; lessOrEqual(last.tok, tok) {
		result = last.value
	} else {
		mi, ma := -1, len(mods)
		for ma-mi > 1 {
			md := (mi + ma) / 2
			if lessOrEqual(mods[md].tok, tok) {
				mi = md
			} else {
				ma = md
			}
		}
		if mi == -1 {
			return nil, ErrNotYetCreated
		}
		result = mods[mi].value
	}

	if result == deletedMarker {
		return nil, ErrFieldDeleted
	}
	return result, nil
}

// Set records value for field, effective starting at tok.
func (d *BsearchFull) Set(field string, value any, tok LinearToken) error {
	mods := d.mods[field]

	if len(mods) == 0 || mods[len(mods)-1].tok.Less(tok) {
		d.mods[field] = append(mods, mod{tok, value})
		return nil
	}

	mi, ma := -1, len(mods)
	for ma-mi > 1 {
		md := (mi + ma) / 2
		if lessOrEqual(mods[md].tok, tok) {
			mi = md
		} else {
			ma = md
		}
	}

	next := tok.Next()
	if ma == len(mods) || next.Less(mods[ma].tok) {
		prevValue := any(deletedMarker)
		if mi >= 0 {
			prevValue = mods[mi].value
		}
		succ := mod{next, prevValue}
		mods = insertModAt(mods, ma, succ)
	}

	if mi >= 0 && mods[mi].tok.Equal(tok) {
		mods[mi] = mod{tok, value}
	} else {
		mods = insertModAt(mods, ma, mod{tok, value})
	}

	d.mods[field] = mods
	return nil
}

// Delete marks field as deleted starting at tok.
func (d *BsearchFull) Delete(field string, tok LinearToken) error {
	return d.Set(field, deletedMarker, tok)
}

func insertModAt(mods []mod, at int, m mod) []mod {
	mods = append(mods, mod{})
	copy(mods[at+1:], mods[at:])
	mods[at] = m
	return mods
}
