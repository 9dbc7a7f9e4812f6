package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhiteboardItems(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"out", []string{"out"}},
		{"[in]", []string{"in"}},
		{"out out2", []string{"out", "out2"}},
		{"[in] [in2]", []string{"in", "in2"}},
		{"[in][in2]", []string{"in", "in2"}},
		{"[in] out", []string{"in", "out"}},
		{"[in]out", []string{"in", "out"}},
		{"[in]out[in2]", []string{"in", "out", "in2"}},
		{"[in]  out [in2]", []string{"in", "out", "in2"}},
		{"out[in]out2", []string{"out", "in", "out2"}},
		{"[hardblocker](?) in-litmus? other-item [some item]",
			[]string{"hardblocker?", "in-litmus?", "other-item", "some item"}},
		{"outer-item[enclosed item][hardblocker](?) in-litmus? other-item [some item]",
			[]string{"outer-item", "enclosed item", "hardblocker?", "in-litmus?", "other-item", "some item"}},
		{"blocker, nsbeta1", []string{"blocker", "nsbeta1"}},
		{"hardblocker, fixed-in-tracemonkey", []string{"hardblocker", "fixed-in-tracemonkey"}},
		{"[unclosed item", []string{"unclosed", "item"}},
		{"[]", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, WhiteboardItems(tt.in))
		})
	}
}
