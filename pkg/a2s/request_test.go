package a2s

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfoRequest(t *testing.T) {
	want := append([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x54}, []byte("Source Engine Query")...)
	want = append(want, 0x00)

	assert.Equal(t, want, BuildInfoRequest())
}

func TestBuildChallengedRequests(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{
			name: "challenge",
			got:  BuildChallengeRequest(),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'U', 0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name: "players",
			got:  BuildPlayerRequest(0x22D5A14B),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'U', 0x4B, 0xA1, 0xD5, 0x22},
		},
		{
			name: "rules",
			got:  BuildRulesRequest(0x22D5A14B),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'V', 0x4B, 0xA1, 0xD5, 0x22},
		},
		{
			name: "negative token",
			got:  BuildRulesRequest(-2),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'V', 0xFE, 0xFF, 0xFF, 0xFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
