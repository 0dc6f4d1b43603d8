package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Allows(t *testing.T) {
	list := Parse([]string{"192.168.1.1", " 10.0.0.0/24 ", "2001:db8::/32", "not-an-ip"})
	require.Len(t, list, 3)

	tests := []struct {
		name string
		ip   string
		want bool
	}{
		{"正常系: 単一IPと一致", "192.168.1.1", true},
		{"正常系: CIDRに含まれる", "10.0.0.200", true},
		{"正常系: IPv6のCIDRに含まれる", "2001:db8::1", true},
		{"異常系: CIDRの範囲外", "10.0.1.1", false},
		{"異常系: 前方一致だけのIP", "192.168.1.10", false},
		{"異常系: IPでない", "garbage", false},
		{"異常系: 空", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, list.Allows(tt.ip))
		})
	}
}

func TestList_EmptyAllowsAll(t *testing.T) {
	assert.True(t, Parse(nil).Allows("203.0.113.5"))
	assert.True(t, Parse([]string{"bogus"}).Allows("203.0.113.5"))
}
