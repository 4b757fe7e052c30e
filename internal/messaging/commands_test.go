package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		body   string
		action string
		code   string
	}{
		{"ACCEPT RMM202609-0012", ActionAccept, "RMM202609-0012"},
		{"accept rmm202609-0012", ActionAccept, "RMM202609-0012"},
		{"  A   RMM202609-0012  ", ActionAccept, "RMM202609-0012"},
		{"DECLINE RMM202609-0012", ActionDecline, "RMM202609-0012"},
		{"d RMM202609-0012", ActionDecline, "RMM202609-0012"},
	}
	for _, tc := range cases {
		cmd, ok := ParseCommand(tc.body)
		require.True(t, ok, "body %q", tc.body)
		assert.Equal(t, tc.action, cmd.Action)
		assert.Equal(t, tc.code, cmd.Code)
	}
}

func TestParseCommandRejectsMalformed(t *testing.T) {
	for _, body := range []string{
		"",
		"ACCEPT",
		"RMM202609-0012",
		"YES RMM202609-0012",
		"ACCEPT RMM2026-0012",
		"ACCEPT RMM202609-0012 please",
		"hello there",
	} {
		_, ok := ParseCommand(body)
		assert.False(t, ok, "body %q should not parse", body)
	}
}
