package coord

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystem(t *testing.T) {
	t.Parallel()
	cases := map[string]System{
		"":       WGS84,
		"wgs84":  WGS84,
		"WGS-84": WGS84,
		"gcj02":  GCJ02,
		"GCJ-02": GCJ02,
		"bd09":   BD09,
		"BD-09":  BD09,
		"bd09ll": BD09,
	}
	for in, want := range cases {
		got, err := ParseSystem(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSystem("mercator")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	// 上海杨浦一带
	wgs := orb.Point{121.4862, 31.2886}
	for _, sys := range []System{WGS84, GCJ02, BD09} {
		sys := sys
		t.Run(string(sys), func(t *testing.T) {
			t.Parallel()
			back := ToWGS84(FromWGS84(wgs, sys), sys)
			assert.InDelta(t, wgs.Lon(), back.Lon(), 5e-5)
			assert.InDelta(t, wgs.Lat(), back.Lat(), 5e-5)
		})
	}
}

func TestOffsetsInsideChina(t *testing.T) {
	t.Parallel()
	bd := orb.Point{121.497635, 31.292725}
	wgs := ToWGS84(bd, BD09)
	// BD-09 相对 WGS-84 在上海约东偏 0.011°、北偏 0.004°
	assert.InDelta(t, 0.011, bd.Lon()-wgs.Lon(), 0.003)
	assert.InDelta(t, 0.004, bd.Lat()-wgs.Lat(), 0.003)

	gcj := FromWGS84(wgs, GCJ02)
	assert.NotEqual(t, wgs, gcj)
}

func TestOutsideChinaUnchangedByGCJ(t *testing.T) {
	t.Parallel()
	paris := orb.Point{2.3522, 48.8566}
	assert.True(t, OutOfChina(paris))
	assert.Equal(t, paris, FromWGS84(paris, GCJ02))
	assert.Equal(t, paris, ToWGS84(paris, GCJ02))
}

func TestBoundConversion(t *testing.T) {
	t.Parallel()
	b := orb.Bound{Min: orb.Point{121.40, 31.20}, Max: orb.Point{121.60, 31.35}}
	back := BoundToWGS84(BoundFromWGS84(b, BD09), BD09)
	assert.InDelta(t, b.Min.Lon(), back.Min.Lon(), 5e-5)
	assert.InDelta(t, b.Max.Lat(), back.Max.Lat(), 5e-5)
}
