package dnode

import (
	"sort"

	"github.com/arborix/timetree/common"
)

// Kept at original_source's split_linearized_full.py heuristics: a dnode
// only ever splits once its combined log (mods summed over all its fields)
// exceeds both splitFullMinMods and splitFullFieldFactor times its field
// count.
const (
	splitFullMinMods     = 20
	splitFullFieldFactor = 5
)

// fullMod is a range-valid modification: value held field from start
// (inclusive) to end (exclusive). source identifies which dnode currently
// owns the slice this Mod lives in, needed so that a straddling Mod can be
// relocated correctly when its owner splits.
type fullMod struct {
	value  any
	source *SplitFull
	field  string
	start  LinearToken
	end    LinearToken
}

// VnodeHandle is how the backend package lets a SplitFull dnode track which
// live vnodes currently wrap it, so that a split can hand off the ones that
// now belong to the new half of the range.
type VnodeHandle interface {
	Token() LinearToken
	Retarget(next *SplitFull)
}

// SplitFull is a confluently-persistent dnode that owns a half-open version
// range [start, end) and splits that range in two once its combined
// modification log grows past threshold — grounded on original_source's
// split_linearized_full.py SplitLinearizedFullDnode. Splitting a dnode that
// other dnodes or vnodes reference requires moving those references too
// (backrefs, vnodes), which can in turn push a referencing dnode over its
// own threshold — the "chain reaction" this type shares with SplitPartial.
type SplitFull struct {
	start, end LinearToken
	modsDict   map[string][]*fullMod
	backrefs   map[*fullMod]struct{}
	vnodes     map[VnodeHandle]struct{}
}

// NewSplitFull returns a dnode covering the whole version range [v0, vInf).
func NewSplitFull(v0, vInf LinearToken) *SplitFull {
	return &SplitFull{
		start:    v0,
		end:      vInf,
		modsDict: map[string][]*fullMod{},
		backrefs: map[*fullMod]struct{}{},
		vnodes:   map[VnodeHandle]struct{}{},
	}
}

// TrackVnode registers h as currently wrapping d, so a future split can hand
// h off to whichever half of the range h's token now falls in.
func (d *SplitFull) TrackVnode(h VnodeHandle) {
	d.vnodes[h] = struct{}{}
}

// UntrackVnode removes a previously tracked vnode handle.
func (d *SplitFull) UntrackVnode(h VnodeHandle) {
	delete(d.vnodes, h)
}

func inRange(start, end LinearToken, tok Token) bool {
	return lessOrEqual(start, tok) && tok.Less(end)
}

// Get returns the value field held as of tok.
func (d *SplitFull) Get(field string, tok Token) (any, error) {
	if !inRange(d.start, d.end, tok) {
		return nil, ErrOutOfRange
	}
	mods, ok := d.modsDict[field]
	if !ok {
		return nil, ErrNeverCreated
	}
	for _, m := range mods {
		if inRange(m.start, m.end, tok) {
			if m.value == deletedMarker {
				return nil, ErrFieldDeleted
			}
			return m.value, nil
		}
	}
	common.Assertf(false, "no mod covers token %v in field %q", tok, field)
	return nil, nil
}

// Set records value for field, effective starting at tok, splitting the
// covering Mod (and possibly the dnode itself, and possibly dnodes that
// reference it) as needed.
func (d *SplitFull) Set(field string, value any, tok LinearToken) error {
	if !inRange(d.start, d.end, tok) {
		return ErrOutOfRange
	}

	mods, ok := d.modsDict[field]
	if !ok {
		mods = []*fullMod{{value: deletedMarker, source: d, field: field, start: d.start, end: d.end}}
		d.modsDict[field] = mods
	}

	ind := -1
	for i, m := range mods {
		if inRange(m.start, m.end, tok) {
			ind = i
			break
		}
	}
	common.Assertf(ind >= 0, "no mod covers token for field %q", field)
	oldMod := mods[ind]
	st, en := oldMod.start, oldMod.end

	splitSet := map[*SplitFull]struct{}{d: {}}
	dropBackref := func(m *fullMod) {
		if ref, ok := m.value.(*SplitFull); ok {
			delete(ref.backrefs, m)
		}
	}
	addBackref := func(m *fullMod) {
		if ref, ok := m.value.(*SplitFull); ok {
			ref.backrefs[m] = struct{}{}
			splitSet[ref] = struct{}{}
		}
	}

	next := tok.Next()
	switch {
	case st.Equal(tok) && en.Equal(next):
		delete(splitSet, d)
		dropBackref(oldMod)
		oldMod.value = value
		addBackref(oldMod)

	case st.Equal(tok):
		oldMod.start = next
		newMod := &fullMod{value: value, source: d, field: field, start: tok, end: next}
		d.modsDict[field] = insertFullModAt(mods, ind, newMod)
		addBackref(newMod)

	default:
		oldMod.end = tok
		newMod := &fullMod{value: value, source: d, field: field, start: tok, end: next}
		mods = insertFullModAt(mods, ind+1, newMod)
		addBackref(newMod)

		if next.Less(en) {
			tailMod := &fullMod{value: oldMod.value, source: d, field: field, start: next, end: en}
			mods = insertFullModAt(mods, ind+2, tailMod)
			addBackref(tailMod)
		}
		d.modsDict[field] = mods
	}

	for len(splitSet) > 0 {
		var cur *SplitFull
		for k := range splitSet {
			cur = k
			break
		}
		delete(splitSet, cur)
		cur.maybeSplit(splitSet)
	}
	return nil
}

// Delete marks field as deleted starting at tok.
func (d *SplitFull) Delete(field string, tok LinearToken) error {
	return d.Set(field, deletedMarker, tok)
}

// maybeSplit splits d's range in two if its combined log has grown past
// threshold, recursively re-splitting both halves and adding any dnode whose
// forward references had to move to splitSet (the chain reaction).
func (d *SplitFull) maybeSplit(splitSet map[*SplitFull]struct{}) {
	numFields := len(d.modsDict)
	numMods := 0
	for _, mods := range d.modsDict {
		numMods += len(mods)
	}
	if numMods <= splitFullMinMods || numMods <= splitFullFieldFactor*numFields {
		return
	}

	points := d.collectSplitPoints()
	if len(points) <= 2 {
		return
	}
	splitPoint := points[len(points)/2]

	next := &SplitFull{
		start:    splitPoint,
		end:      d.end,
		modsDict: map[string][]*fullMod{},
		backrefs: map[*fullMod]struct{}{},
		vnodes:   map[VnodeHandle]struct{}{},
	}
	d.end = splitPoint

	for field, mods := range d.modsDict {
		ind := -1
		for i, m := range mods {
			if inRange(m.start, m.end, splitPoint) {
				ind = i
				break
			}
		}
		common.Assertf(ind >= 0, "split point not covered by any mod in field %q", field)

		splitMod := mods[ind]
		if splitMod.start.Less(splitPoint) {
			newMod := &fullMod{value: splitMod.value, source: d, field: field, start: splitPoint, end: splitMod.end}
			splitMod.end = splitPoint
			mods = insertFullModAt(mods, ind+1, newMod)
			if ref, ok := newMod.value.(*SplitFull); ok {
				ref.backrefs[newMod] = struct{}{}
				splitSet[ref] = struct{}{}
			}
			ind++
		}

		next.modsDict[field] = mods[ind:]
		d.modsDict[field] = mods[:ind]
		for _, m := range next.modsDict[field] {
			m.source = next
		}
	}

	backrefs := d.backrefs
	d.backrefs = map[*fullMod]struct{}{}
	for m := range backrefs {
		switch {
		case lessOrEqual(m.end, splitPoint):
			d.backrefs[m] = struct{}{}
		case lessOrEqual(splitPoint, m.start):
			m.value = next
			next.backrefs[m] = struct{}{}
		default:
			newMod := &fullMod{value: next, source: m.source, field: m.field, start: splitPoint, end: m.end}
			m.end = splitPoint

			srcMods := m.source.modsDict[m.field]
			idx := indexOfMod(srcMods, m)
			m.source.modsDict[m.field] = insertFullModAt(srcMods, idx+1, newMod)
			splitSet[m.source] = struct{}{}

			d.backrefs[m] = struct{}{}
			next.backrefs[newMod] = struct{}{}
		}
	}

	vnodes := d.vnodes
	d.vnodes = map[VnodeHandle]struct{}{}
	for v := range vnodes {
		if v.Token().Less(splitPoint) {
			d.vnodes[v] = struct{}{}
		} else {
			v.Retarget(next)
			next.vnodes[v] = struct{}{}
		}
	}

	d.maybeSplit(splitSet)
	next.maybeSplit(splitSet)
}

func (d *SplitFull) collectSplitPoints() []LinearToken {
	seen := map[LinearToken]struct{}{}
	var points []LinearToken
	add := func(t LinearToken) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		points = append(points, t)
	}
	add(d.start)
	add(d.end)
	for _, mods := range d.modsDict {
		for _, m := range mods {
			add(m.start)
		}
	}
	for m := range d.backrefs {
		add(m.start)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Less(points[j]) })
	return points
}

func insertFullModAt(mods []*fullMod, at int, m *fullMod) []*fullMod {
	mods = append(mods, nil)
	copy(mods[at+1:], mods[at:])
	mods[at] = m
	return mods
}

func indexOfMod(mods []*fullMod, m *fullMod) int {
	for i, cand := range mods {
		if cand == m {
			return i
		}
	}
	common.Assertf(false, "mod not found in its own source's log")
	return -1
}
