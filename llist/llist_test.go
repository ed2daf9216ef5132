package llist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	name string
	link Linkage[item]
}

func TestPushFrontBack(t *testing.T) {
	var h Head[item]
	a := &item{name: "a"}
	b := &item{name: "b"}
	c := &item{name: "c"}

	h.PushBack(&a.link, a)
	h.PushBack(&b.link, b)
	h.PushFront(&c.link, c)

	require.Equal(t, 3, h.Len())
	require.Equal(t, "c", h.Front().name)
	require.Equal(t, "b", h.Back().name)

	require.Equal(t, "a", Next(&c.link).name)
	require.Equal(t, "b", Next(&a.link).name)
	require.Nil(t, Next(&b.link))
	require.Nil(t, Prev(&c.link))
}

func TestInsertAfterAndRemove(t *testing.T) {
	var h Head[item]
	a := &item{name: "a"}
	b := &item{name: "b"}
	c := &item{name: "c"}

	h.PushBack(&a.link, a)
	h.InsertAfter(&a.link, &b.link, b)
	h.InsertAfter(nil, &c.link, c)

	require.Equal(t, []string{"c", "a", "b"}, collect(&h))

	h.Remove(&a.link)
	require.Equal(t, []string{"c", "b"}, collect(&h))
	require.False(t, Linked(&a.link))
	require.Equal(t, 2, h.Len())

	h.Remove(&a.link)
	require.Equal(t, 2, h.Len(), "removing an already-unlinked node is a no-op")
}

func TestEmpty(t *testing.T) {
	var h Head[item]
	require.True(t, h.Empty())
	require.Nil(t, h.Front())
	require.Nil(t, h.Back())
}

func collect(h *Head[item]) []string {
	var out []string
	for n := h.Front(); n != nil; n = Next(&n.link) {
		out = append(out, n.name)
	}
	return out
}
