package filter

import (
	"testing"

	"newsdriven/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestFilterCheck(t *testing.T) {
	f := New("USDT", 60, []string{" shib ", "1000pepe", ""})

	cases := []struct {
		name        string
		sig         types.Signal
		passed      bool
		blacklisted bool
		base        string
	}{
		{"pass", types.Signal{Symbol: "BTCUSDT", Confidence: 80}, true, false, "BTC"},
		{"boundary", types.Signal{Symbol: "ETHUSDT", Confidence: 60}, true, false, "ETH"},
		{"low confidence", types.Signal{Symbol: "ETHUSDT", Confidence: 59.9}, false, false, "ETH"},
		{"blacklisted", types.Signal{Symbol: "SHIBUSDT", Confidence: 99}, false, true, "SHIB"},
		{"numeric prefix", types.Signal{Symbol: "1000PEPEUSDT", Confidence: 99}, false, true, "1000PEPE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := f.Check(tc.sig)
			assert.Equal(t, tc.passed, v.Passed, v.Reason)
			assert.Equal(t, tc.blacklisted, v.Blacklisted)
			assert.Equal(t, tc.base, v.Base)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestNilFilterPasses(t *testing.T) {
	var f *Filter
	v := f.Check(types.Signal{Symbol: "BTCUSDT"})
	assert.True(t, v.Passed)
}

func TestZeroMinConfidence(t *testing.T) {
	f := New("", 0, nil)
	v := f.Check(types.Signal{Symbol: "DOGEUSDT", Confidence: 0})
	assert.True(t, v.Passed)
	assert.Equal(t, "DOGE", v.Base)
}
