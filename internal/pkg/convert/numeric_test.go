package convert

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 85, want: 85, ok: true},
		{in: int64(3), want: 3, ok: true},
		{in: 0.7, want: 0.7, ok: true},
		{in: " 85% ", want: 85, ok: true},
		{in: json.Number("12.5"), want: 12.5, ok: true},
		{in: "high", ok: false},
		{in: nil, ok: false},
		{in: math.NaN(), ok: false},
		{in: []int{1}, ok: false},
	}
	for _, tc := range cases {
		got, ok := Float(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9)
		}
	}
	assert.Equal(t, 0.0, ToFloat64("x"))
}
