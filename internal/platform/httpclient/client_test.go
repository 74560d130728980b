package httpclient

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublicIP(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34":   true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"10.1.2.3":        false,
		"172.16.0.9":      false,
		"192.168.1.1":     false,
		"169.254.169.254": false,
		"100.64.0.1":      false,
		"0.0.0.0":         false,
		"::1":             false,
		"fe80::1":         false,
		"fd00::1":         false,
		"::ffff:10.0.0.1": false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, IsPublicIP(net.ParseIP(addr)), addr)
	}
}

func TestPublicOnlyControl(t *testing.T) {
	assert.ErrorIs(t, publicOnly("tcp", "127.0.0.1:80", nil), ErrBlockedAddress)
	assert.ErrorIs(t, publicOnly("tcp6", "[::1]:443", nil), ErrBlockedAddress)
	assert.NoError(t, publicOnly("tcp", "93.184.216.34:443", nil))
	assert.Error(t, publicOnly("tcp", "no-port", nil))
}
