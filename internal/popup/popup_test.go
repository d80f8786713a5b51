package popup

import (
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySingleSlot(t *testing.T) {
	t.Parallel()
	r := &Registry{}
	a := New(orb.Point{1, 1}, []Item{{ID: "1", Title: "a"}})
	b := New(orb.Point{2, 2}, nil)

	assert.Nil(t, r.Open(a))
	assert.Same(t, a, r.Current())
	assert.True(t, a.IsOpen())

	prev := r.Open(b)
	assert.Same(t, a, prev)
	assert.False(t, a.IsOpen())
	assert.True(t, b.IsOpen())
	assert.Same(t, b, r.Current())

	assert.True(t, r.Close())
	assert.False(t, b.IsOpen())
	assert.Nil(t, r.Current())
	assert.False(t, r.Close())
}

func TestRegistryReopenSame(t *testing.T) {
	t.Parallel()
	r := &Registry{}
	a := New(orb.Point{1, 1}, nil)
	r.Open(a)
	assert.Nil(t, r.Open(a))
	assert.True(t, a.IsOpen())
}

func TestNilRegistry(t *testing.T) {
	t.Parallel()
	var r *Registry
	p := New(orb.Point{}, nil)
	assert.Nil(t, r.Open(p))
	assert.False(t, r.Close())
	assert.Nil(t, r.Current())
	assert.True(t, p.IsOpen())
}

func TestRegistryConcurrentOpen(t *testing.T) {
	t.Parallel()
	r := &Registry{}
	var wg sync.WaitGroup
	popups := make([]*Popup, 32)
	for i := range popups {
		popups[i] = New(orb.Point{float64(i), 0}, nil)
	}
	for _, p := range popups {
		wg.Add(1)
		go func(p *Popup) {
			defer wg.Done()
			r.Open(p)
		}(p)
	}
	wg.Wait()

	open := 0
	for _, p := range popups {
		if p.IsOpen() {
			open++
		}
	}
	require.Equal(t, 1, open)
	assert.True(t, r.Current().IsOpen())
}
