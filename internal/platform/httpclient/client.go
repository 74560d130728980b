// Package httpclient builds the outbound HTTP clients used for third-party APIs and page scraping.
package httpclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 20 * time.Second
)

// New creates an HTTP client with bounded timeouts and a pooled transport.
func New(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: transport(ResponseHeaderTimeout)}
}

// NewSlow is New without the response header deadline, for model calls that think before answering.
func NewSlow(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: transport(0)}
}

// ErrBlockedAddress is returned when a public client is asked to connect to a
// loopback, private or link-local address.
var ErrBlockedAddress = errors.New("httpclient: destination address is not public")

// cgnat is the shared address space of RFC 6598.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// NewPublic is New for fetching user or search supplied URLs. It only connects to public
// unicast addresses, checked after DNS resolution so redirects and rebinding are covered too.
// Proxies from the environment are ignored.
func NewPublic(timeout time.Duration) *http.Client {
	t := transport(ResponseHeaderTimeout)
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: 30 * time.Second,
		Control:   publicOnly,
	}).DialContext
	return &http.Client{Timeout: timeout, Transport: t}
}

func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	return nil
}

// IsPublicIP reports whether ip is a globally routable unicast address.
func IsPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	}
	if ip4 := ip.To4(); ip4 != nil && (cgnat.Contains(ip4) || ip4[0] == 0 || ip4.Equal(net.IPv4bcast)) {
		return false
	}
	return true
}

func transport(headerTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: headerTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Default is the client for JSON APIs.
func Default() *http.Client {
	return New(30 * time.Second)
}
