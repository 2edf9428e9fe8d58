package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`, ok: true},
		{name: "fenced", in: "分析如下\n```json\n{\"symbol\":\"BTC\"}\n```\n完毕", want: `{"symbol":"BTC"}`, ok: true},
		{name: "prose around", in: `result: {"x":{"y":"}"}} trailing`, want: `{"x":{"y":"}"}}`, ok: true},
		{name: "unterminated", in: `{"a":1`, ok: false},
		{name: "empty", in: "   ", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestPrettyKeepsKeyOrder(t *testing.T) {
	assert.Equal(t, "{\n  \"symbol\": \"BTC\",\n  \"confidence\": 80\n}", Pretty(`{"symbol":"BTC","confidence":80}`))
	assert.Equal(t, "not json", Pretty(" not json "))
}
