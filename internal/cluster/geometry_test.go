package cluster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCutBoundsInRange(t *testing.T) {
	t.Parallel()
	got := CutBoundsInRange(orb.Bound{Min: orb.Point{-200, -80}, Max: orb.Point{190, 85}})
	assert.Equal(t, orb.Bound{Min: orb.Point{-180, -74}, Max: orb.Point{180, 74}}, got)

	in := orb.Bound{Min: orb.Point{116, 39}, Max: orb.Point{117, 40}}
	assert.Equal(t, in, CutBoundsInRange(in))
}

func TestExtendedBounds(t *testing.T) {
	t.Parallel()
	h := newFlatHost()
	got := ExtendedBounds(h, pointBound(orb.Point{116.4, 39.9}), 60)
	assert.InDelta(t, 116.34, got.Min.Lon(), 1e-9)
	assert.InDelta(t, 39.84, got.Min.Lat(), 1e-9)
	assert.InDelta(t, 116.46, got.Max.Lon(), 1e-9)
	assert.InDelta(t, 39.96, got.Max.Lat(), 1e-9)

	t.Run("clamped before extension", func(t *testing.T) {
		h := newFlatHost()
		h.center = orb.Point{0, 74}
		got := ExtendedBounds(h, pointBound(orb.Point{0, 80}), 10)
		assert.InDelta(t, 74.01, got.Max.Lat(), 1e-9)
		assert.InDelta(t, 73.99, got.Min.Lat(), 1e-9)
	})
}

func TestMarkerStyleByTens(t *testing.T) {
	t.Parallel()
	styles := []Style{{URL: "1"}, {URL: "2"}, {URL: "3"}}
	cases := []struct {
		count int
		want  string
	}{
		{2, "1"},
		{9, "1"},
		{10, "2"},
		{19, "2"},
		{20, "3"},
		{99, "3"},
		{12345, "3"},
	}
	for _, tc := range cases {
		m := newMarker(styles, nil)
		m.update(orb.Point{1, 1}, tc.count)
		st, ok := m.Style()
		assert.True(t, ok)
		assert.Equal(t, tc.want, st.URL, "count=%d", tc.count)
		assert.Equal(t, tc.count, m.Count())
	}

	m := newMarker(styles, nil)
	assert.True(t, m.Hidden())
	m.update(orb.Point{1, 1}, 5)
	assert.False(t, m.Hidden())
	assert.Equal(t, "5", m.Text())
	m.hide()
	assert.True(t, m.Hidden())
}
