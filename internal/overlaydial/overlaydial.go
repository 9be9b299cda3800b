// Package overlaydial supplies an optional SOCKS5 dialer for address
// families that address.Address.TryConnect deliberately does not
// handle itself: onion and I2P addresses need a local proxy (Tor's
// SocksPort, I2P's SAM/HTTP proxy) to reach, and which proxy to use is
// an application/deployment decision, not something the address model
// should hardcode.
package overlaydial

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"

	"github.com/sandia-minimega/zeromesh/address"
)

// Dialer dials overlay addresses through a fixed SOCKS5 proxy, such as
// a local Tor client's SocksPort or an I2P HTTP/SOCKS bridge.
type Dialer struct {
	proxyAddr string
	dialer    proxy.Dialer
}

// New builds a Dialer that routes connections through the SOCKS5
// proxy listening at proxyAddr (host:port).
func New(proxyAddr string) (*Dialer, error) {
	d, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("overlaydial: building SOCKS5 dialer for %s: %w", proxyAddr, err)
	}
	return &Dialer{proxyAddr: proxyAddr, dialer: d}, nil
}

// Dial connects to addr through the configured proxy. addr must be an
// onion or I2P address; clearnet addresses should use
// address.Address.TryConnect directly instead.
func (d *Dialer) Dial(addr address.Address) (net.Conn, error) {
	if !addr.IsOnion() && !addr.IsI2P() {
		return nil, fmt.Errorf("overlaydial: %s is not an onion or I2P address", addr)
	}

	if ctxDialer, ok := d.dialer.(proxy.ContextDialer); ok {
		return ctxDialer.DialContext(context.Background(), "tcp", addr.String())
	}
	return d.dialer.Dial("tcp", addr.String())
}
