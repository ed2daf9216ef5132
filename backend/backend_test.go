package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborix/timetree/common"
)

// engineUnderTest names a constructor so every property test can run across
// every engine it logically applies to without duplicating the test bodies.
type engineUnderTest struct {
	name        string
	newBackend  func() Backend
	confluent   bool // Branch may fuse vnodes from distinct commits
	supportsSet bool // false only for NopBackend, which has no commit/branch beyond the first
}

func persistentEngines() []engineUnderTest {
	return []engineUnderTest{
		{name: "Copy", newBackend: func() Backend { return NewCopyBackend() }, confluent: true, supportsSet: true},
		{name: "BsearchPartial", newBackend: func() Backend { return NewBsearchPartialBackend() }, supportsSet: true},
		{name: "SplitPartial", newBackend: func() Backend { return NewSplitPartialBackend() }, supportsSet: true},
		{name: "BsearchLinearizedFull", newBackend: func() Backend { return NewBsearchLinearizedFullBackend() }, supportsSet: true},
		{name: "BSTLinearizedFull", newBackend: func() Backend { return NewBSTLinearizedFullBackend() }, supportsSet: true},
		{name: "SplitLinearizedFull", newBackend: func() Backend { return NewSplitLinearizedFullBackend() }, confluent: true, supportsSet: true},
	}
}

// rootHead returns the single initial head of a freshly constructed backend,
// uniformly across engines whose first head is reached differently (Copy and
// the full engines branch a new head from the base commit on Branch(nil);
// the partial engines return their single head).
func rootHead(t *testing.T, b Backend) Version {
	t.Helper()
	h, _, err := b.Branch(nil)
	require.NoError(t, err)
	require.True(t, h.IsHead())
	return h
}

func TestP1RoundTrip(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)

			require.NoError(t, v.Set("f", 5))
			got, err := v.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, got)

			require.NoError(t, v.Delete("f"))
			_, err = v.Get("f")
			require.Error(t, err)
			var be *Error
			require.True(t, errors.As(err, &be))
			require.Equal(t, NotFound, be.Kind)
		})
	}
}

func TestP1SelfAndCyclicReferencesAreLegal(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			a, err := h.NewNode()
			require.NoError(t, err)

			require.NoError(t, a.Set("ptr", a))
			got, err := a.Get("ptr")
			require.NoError(t, err)
			require.True(t, a.Equal(got.(Vnode)))

			c, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, a.Set("ptr", c))
			require.NoError(t, c.Set("ptr", a))

			gotA, err := a.Get("ptr")
			require.NoError(t, err)
			require.True(t, c.Equal(gotA.(Vnode)))
			gotC, err := c.Get("ptr")
			require.NoError(t, err)
			require.True(t, a.Equal(gotC.(Vnode)))
		})
	}
}

func TestP2CommitIsolation(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 5))

			_, vnodes, err := b.Commit([]Vnode{v})
			require.NoError(t, err)
			vc := vnodes[0]

			require.NoError(t, v.Set("f", 8))

			gotC, err := vc.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, gotC)

			gotV, err := v.Get("f")
			require.NoError(t, err)
			require.Equal(t, 8, gotV)
		})
	}
}

func TestP3Branching(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 5))

			_, committed, err := b.Commit([]Vnode{v})
			require.NoError(t, err)
			vc := committed[0]

			_, branched, err := b.Branch([]Vnode{vc})
			if e.name == "BsearchPartial" || e.name == "SplitPartial" {
				// Partial engines cannot branch from a commit at all.
				var be *Error
				require.True(t, errors.As(err, &be))
				require.Equal(t, Unsupported, be.Kind)
				return
			}
			require.NoError(t, err)
			vh := branched[0]

			got, err := vh.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, got)

			require.NoError(t, vh.Set("f", 9))

			gotVC, err := vc.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, gotVC)
		})
	}
}

func TestP4Confluence(t *testing.T) {
	for _, e := range persistentEngines() {
		if !e.confluent {
			continue
		}
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()

			h1 := rootHead(t, b)
			v1, err := h1.NewNode()
			require.NoError(t, err)
			require.NoError(t, v1.Set("f", "one"))
			_, committed1, err := b.Commit([]Vnode{v1})
			require.NoError(t, err)
			vc1 := committed1[0]

			h2, _, err := b.Branch(nil)
			require.NoError(t, err)
			v2, err := h2.NewNode()
			require.NoError(t, err)
			require.NoError(t, v2.Set("f", "two"))
			_, committed2, err := b.Commit([]Vnode{v2})
			require.NoError(t, err)
			vc2 := committed2[0]

			_, fused, err := b.Branch([]Vnode{vc1, vc2})
			require.NoError(t, err)
			require.True(t, fused[0].Version().IsHead())
			require.Same(t, fused[0].Version(), fused[1].Version())

			got1, err := fused[0].Get("f")
			require.NoError(t, err)
			require.Equal(t, "one", got1)

			got2, err := fused[1].Get("f")
			require.NoError(t, err)
			require.Equal(t, "two", got2)
		})
	}
}

func TestP4NonConfluentEnginesRefuseMixedCommitBranch(t *testing.T) {
	for _, e := range persistentEngines() {
		if e.confluent {
			continue
		}
		if e.name == "BsearchPartial" || e.name == "SplitPartial" {
			// Partial engines refuse branching from any commit at all; that
			// case is already covered by Unsupported handling elsewhere.
			continue
		}
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()

			h1 := rootHead(t, b)
			v1, err := h1.NewNode()
			require.NoError(t, err)
			_, committed1, err := b.Commit([]Vnode{v1})
			require.NoError(t, err)

			h2, _, err := b.Branch(nil)
			require.NoError(t, err)
			v2, err := h2.NewNode()
			require.NoError(t, err)
			_, committed2, err := b.Commit([]Vnode{v2})
			require.NoError(t, err)

			_, _, err = b.Branch([]Vnode{committed1[0], committed2[0]})
			require.Error(t, err)
			var be *Error
			require.True(t, errors.As(err, &be))
			require.Equal(t, InvariantViolation, be.Kind)
		})
	}
}

func TestP5IdentityPreservationAcrossCommit(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			a, err := h.NewNode()
			require.NoError(t, err)
			c, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, a.Set("ptr", c))
			require.NoError(t, c.Set("ptr", a))

			_, committed, err := b.Commit([]Vnode{a, c})
			require.NoError(t, err)
			ca, cc := committed[0], committed[1]

			gotA, err := ca.Get("ptr")
			require.NoError(t, err)
			require.True(t, cc.Equal(gotA.(Vnode)))

			gotC, err := cc.Get("ptr")
			require.NoError(t, err)
			require.True(t, ca.Equal(gotC.(Vnode)))
		})
	}
}

// TestP6SplitSoundness differentially tests the split engines against
// CopyBackend, feeding both the same scripted sequence of 40 sets of one
// field on a single vnode, each followed by a commit, and requiring every
// commit's Get to agree.
func TestP6SplitSoundness(t *testing.T) {
	type step struct {
		field string
		value int
	}
	steps := make([]step, 40)
	for i := range steps {
		steps[i] = step{field: "val", value: i}
	}

	for _, e := range persistentEngines() {
		if e.name != "SplitPartial" && e.name != "SplitLinearizedFull" {
			continue
		}
		t.Run(e.name, func(t *testing.T) {
			oracle := NewCopyBackend()
			subject := e.newBackend()

			oh := rootHead(t, oracle)
			sh := rootHead(t, subject)
			ov, err := oh.NewNode()
			require.NoError(t, err)
			sv, err := sh.NewNode()
			require.NoError(t, err)

			var oracleSnaps, subjectSnaps []Vnode
			for _, st := range steps {
				require.NoError(t, ov.Set(st.field, st.value))
				require.NoError(t, sv.Set(st.field, st.value))

				_, oc, err := oracle.Commit([]Vnode{ov})
				require.NoError(t, err)
				_, sc, err := subject.Commit([]Vnode{sv})
				require.NoError(t, err)

				oracleSnaps = append(oracleSnaps, oc[0])
				subjectSnaps = append(subjectSnaps, sc[0])
			}

			for i := range steps {
				wantVal, err := oracleSnaps[i].Get("val")
				require.NoError(t, err)
				gotVal, err := subjectSnaps[i].Get("val")
				require.NoError(t, err)
				require.Equal(t, wantVal, gotVal, "mismatch at commit %d", i)
			}
		})
	}
}

// TestScenarioSmoke is spec.md §8 scenario 1.
func TestScenarioSmoke(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 5))
			got, err := v.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, got)
		})
	}
}

// TestScenarioCommitIsolation is spec.md §8 scenario 2.
func TestScenarioCommitIsolation(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 5))

			_, committed, err := b.Commit([]Vnode{v})
			require.NoError(t, err)
			vc := committed[0]

			require.NoError(t, v.Set("f", 8))

			gotVC, err := vc.Get("f")
			require.NoError(t, err)
			gotV, err := v.Get("f")
			require.NoError(t, err)
			require.Equal(t, 5, gotVC)
			require.Equal(t, 8, gotV)
		})
	}
}

// TestScenarioCycleCommit is spec.md §8 scenario 3.
func TestScenarioCycleCommit(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v1, err := h.NewNode()
			require.NoError(t, err)
			v2, err := h.NewNode()
			require.NoError(t, err)

			require.NoError(t, v1.Set("p", v2))
			require.NoError(t, v2.Set("p", v1))

			_, committed, err := b.Commit([]Vnode{v1, v2})
			require.NoError(t, err)
			cv1, cv2 := committed[0], committed[1]

			got1, err := cv1.Get("p")
			require.NoError(t, err)
			got2, err := cv2.Get("p")
			require.NoError(t, err)
			require.True(t, cv2.Equal(got1.(Vnode)))
			require.True(t, cv1.Equal(got2.(Vnode)))
		})
	}
}

// TestScenarioManyCommits is spec.md §8 scenario 4, at a scale small enough
// to run quickly while still forcing split engines through several splits.
func TestScenarioManyCommits(t *testing.T) {
	const n = 200
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)

			commits := make([]Vnode, n)
			for i := 0; i < n; i++ {
				require.NoError(t, v.Set("val", i))
				_, out, err := b.Commit([]Vnode{v})
				require.NoError(t, err)
				commits[i] = out[0]
			}

			for i := 0; i < n; i++ {
				got, err := commits[i].Get("val")
				require.NoError(t, err)
				require.Equal(t, i, got)
			}
		})
	}
}

// TestScenarioBranchDivergence is spec.md §8 scenario 5.
func TestScenarioBranchDivergence(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 5))

			_, committed, err := b.Commit([]Vnode{v})
			require.NoError(t, err)
			vc := committed[0]
			require.NoError(t, v.Set("f", 8))

			_, branched, err := b.Branch([]Vnode{vc})
			if e.name == "BsearchPartial" || e.name == "SplitPartial" {
				// Partial engines cannot branch from a commit at all.
				var be *Error
				require.True(t, errors.As(err, &be))
				require.Equal(t, Unsupported, be.Kind)
				return
			}
			require.NoError(t, err)
			vc2 := branched[0]
			require.NoError(t, vc2.Set("f", 9))

			gotV, err := v.Get("f")
			require.NoError(t, err)
			gotVC, err := vc.Get("f")
			require.NoError(t, err)
			gotVC2, err := vc2.Get("f")
			require.NoError(t, err)
			require.Equal(t, 8, gotV)
			require.Equal(t, 5, gotVC)
			require.Equal(t, 9, gotVC2)
		})
	}
}

// TestScenarioChainSplit is spec.md §8 scenario 6, scaled down from 1000 to
// 120 steps (six times SplitFull's 20-mod threshold, but under twice
// SplitPartial's 64-mod per-field threshold) so the suite runs in reasonable
// time.
func TestScenarioChainSplit(t *testing.T) {
	const n = 120
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			a, err := h.NewNode()
			require.NoError(t, err)
			bb, err := h.NewNode()
			require.NoError(t, err)
			c, err := h.NewNode()
			require.NoError(t, err)
			d, err := h.NewNode()
			require.NoError(t, err)

			require.NoError(t, a.Set("next", bb))
			require.NoError(t, bb.Set("next", c))
			require.NoError(t, c.Set("next", d))
			require.NoError(t, d.Set("next", a))

			type quad struct{ a, b, c, d Vnode }
			commits := make([]quad, n)

			for i := 0; i < n; i++ {
				require.NoError(t, a.Set("val", i))
				require.NoError(t, bb.Set("val", i+1000))
				require.NoError(t, c.Set("val", i+2000))
				require.NoError(t, d.Set("val", i+3000))

				_, out, err := b.Commit([]Vnode{a, bb, c, d})
				require.NoError(t, err)
				commits[i] = quad{out[0], out[1], out[2], out[3]}
			}

			for i, q := range commits {
				va, err := q.a.Get("val")
				require.NoError(t, err)
				vb, err := q.b.Get("val")
				require.NoError(t, err)
				vc, err := q.c.Get("val")
				require.NoError(t, err)
				vd, err := q.d.Get("val")
				require.NoError(t, err)
				require.Equal(t, i, va)
				require.Equal(t, i+1000, vb)
				require.Equal(t, i+2000, vc)
				require.Equal(t, i+3000, vd)

				na, err := q.a.Get("next")
				require.NoError(t, err)
				nb, err := q.b.Get("next")
				require.NoError(t, err)
				nc, err := q.c.Get("next")
				require.NoError(t, err)
				nd, err := q.d.Get("next")
				require.NoError(t, err)
				require.True(t, q.b.Equal(na.(Vnode)))
				require.True(t, q.c.Equal(nb.(Vnode)))
				require.True(t, q.d.Equal(nc.(Vnode)))
				require.True(t, q.a.Equal(nd.(Vnode)))
			}
		})
	}
}

func TestNopBackendSingleHeadNoCommit(t *testing.T) {
	b := NewNopBackend()
	h, _, err := b.Branch(nil)
	require.NoError(t, err)
	v, err := h.NewNode()
	require.NoError(t, err)
	require.NoError(t, v.Set("f", 1))

	_, _, err = b.Commit([]Vnode{v})
	common.RequireErrorWith(t, err, "does not support commit")
	var be *Error
	require.True(t, errors.As(err, &be))
	require.Equal(t, Unsupported, be.Kind)

	_, _, err = b.Branch(nil)
	common.RequireErrorWith(t, err, "single head")
	require.True(t, errors.As(err, &be))
	require.Equal(t, InvariantViolation, be.Kind)
}

func TestPartialEnginesRefuseBranchFromCommit(t *testing.T) {
	for _, name := range []string{"BsearchPartial", "SplitPartial"} {
		t.Run(name, func(t *testing.T) {
			var b Backend
			if name == "BsearchPartial" {
				b = NewBsearchPartialBackend()
			} else {
				b = NewSplitPartialBackend()
			}
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			_, committed, err := b.Commit([]Vnode{v})
			require.NoError(t, err)

			_, _, err = b.Branch(committed)
			require.Error(t, err)
			var be *Error
			require.True(t, errors.As(err, &be))
			require.Equal(t, Unsupported, be.Kind)
		})
	}
}

func TestSetOnCommitIsRejected(t *testing.T) {
	for _, e := range persistentEngines() {
		t.Run(e.name, func(t *testing.T) {
			b := e.newBackend()
			h := rootHead(t, b)
			v, err := h.NewNode()
			require.NoError(t, err)
			require.NoError(t, v.Set("f", 1))
			_, committed, err := b.Commit([]Vnode{v})
			require.NoError(t, err)

			err = committed[0].Set("f", 2)
			common.RequireErrorWith(t, err, "head version")
			var be *Error
			require.True(t, errors.As(err, &be))
			require.Equal(t, InvariantViolation, be.Kind)
		})
	}
}
