package predecessor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type intKey int

func (a intKey) Less(b intKey) bool  { return a < b }
func (a intKey) Equal(b intKey) bool { return a == b }

func TestGetPredExactAndFloor(t *testing.T) {
	d := NewDict[intKey, string]()
	d.Set(10, "ten")
	d.Set(20, "twenty")
	d.Set(30, "thirty")

	v, ok := d.GetPred(20)
	require.True(t, ok)
	require.Equal(t, "twenty", v)

	v, ok = d.GetPred(25)
	require.True(t, ok)
	require.Equal(t, "twenty", v)

	v, ok = d.GetPred(9)
	require.False(t, ok)
	require.Equal(t, "", v)

	v, ok = d.GetPred(1000)
	require.True(t, ok)
	require.Equal(t, "thirty", v)
}

func TestSetOverwrites(t *testing.T) {
	d := NewDict[intKey, int]()
	d.Set(5, 1)
	d.Set(5, 2)
	v, ok := d.GetPred(5)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestAgainstLinearScan(t *testing.T) {
	d := NewDict[intKey, int]()
	rnd := rand.New(rand.NewSource(42))
	keys := map[intKey]int{}

	for i := 0; i < 2000; i++ {
		k := intKey(rnd.Intn(5000))
		v := rnd.Int()
		d.Set(k, v)
		keys[k] = v
	}

	for i := 0; i < 2000; i++ {
		q := intKey(rnd.Intn(5200))
		var best intKey
		found := false
		for k := range keys {
			if k <= q && (!found || k > best) {
				best, found = k, true
			}
		}
		v, ok := d.GetPred(q)
		require.Equal(t, found, ok, "query %d", q)
		if found {
			require.Equal(t, keys[best], v, "query %d", q)
		}
	}
}
