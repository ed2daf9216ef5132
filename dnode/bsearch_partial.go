package dnode

// mod is one entry in a field's modification log: the value the field took
// on starting at tok.
type mod struct {
	tok   Token
	value any
}

// BsearchPartial is a partial-persistence dnode: each field's history is a
// slice kept sorted by token, and Set only ever appends at (or past) the
// current end — grounded on original_source's bsearch_partial.py
// BsearchPartialDnode, itself a copy of the generic BsearchDnode in
// base_dnode.py.
type BsearchPartial struct {
	mods map[string][]mod
}

// NewBsearchPartial returns an empty dnode.
func NewBsearchPartial() *BsearchPartial {
	return &BsearchPartial{mods: map[string][]mod{}}
}

// Get returns the value field held as of tok.
func (d *BsearchPartial) Get(field string, tok Token) (any, error) {
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

// Set appends a new value for field, effective at tok. tok must not precede
// the field's most recent modification.
func (d *BsearchPartial) Set(field string, value any, tok Token) error {
	mods := d.mods[field]
	if len(mods) == 0 || lessOrEqual(mods[len(mods)-1].tok, tok) {
		d.mods[field] = append(mods, mod{tok, value})
		return nil
	}
	return ErrOutOfOrder
}

// Delete marks field as deleted as of tok.
func (d *BsearchPartial) Delete(field string, tok Token) error {
	return d.Set(field, deletedMarker, tok)
}

// Fields reports every field name that has ever been set, for callers that
// need to enumerate a dnode's modification log (e.g. split heuristics).
func (d *BsearchPartial) Fields() []string {
	out := make([]string, 0, len(d.mods))
	for f := range d.mods {
		out = append(out, f)
	}
	return out
}

// Len reports the number of modifications recorded for field.
func (d *BsearchPartial) Len(field string) int {
	return len(d.mods[field])
}

// lastRaw returns the most recently recorded value for field, including the
// internal deleted-value sentinel unwrapped (no NotFound/deleted
// translation). SplitPartial uses it to propagate a field's current state
// onto a freshly split continuation dnode regardless of whether that state
// is "deleted".
func (d *BsearchPartial) lastRaw(field string) (any, bool) {
	mods, ok := d.mods[field]
	if !ok || len(mods) == 0 {
		return nil, false
	}
	return mods[len(mods)-1].value, true
}
