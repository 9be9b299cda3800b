// Package address implements the peer address model used to identify
// ZeroNet endpoints across clearnet, onion (v2/v3), I2P-b32, and Loki
// overlays: string parsing, the compact binary packed form, and (for
// clearnet families) a direct TCP dial.
package address

import (
	"encoding/base32"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Family names the address variant. The packed length uniquely
// determines the family (see Unpack).
type Family int

const (
	IPv4 Family = iota
	IPv6
	OnionV2
	OnionV3
	I2PB32
	Loki
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	case OnionV2:
		return "onionv2"
	case OnionV3:
		return "onionv3"
	case I2PB32:
		return "i2pb32"
	case Loki:
		return "loki"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// base32Encoding is RFC 4648 base32 with the lowercase alphabet and no
// padding, matching the on-wire label encoding used by Tor, I2P, and
// Loki.
var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Address is a tagged value identifying a peer endpoint. The zero value
// is not a valid Address; construct one with Parse or Unpack.
type Address struct {
	family Family
	ip     net.IP // IPv4, IPv6
	label  string // OnionV2, OnionV3, I2PB32, Loki: lowercase base32, no padding
	port   uint16
}

// Family reports which variant a is.
func (a Address) Family() Family { return a.family }

// IsClearnet reports whether a is IPv4 or IPv6.
func (a Address) IsClearnet() bool { return a.family == IPv4 || a.family == IPv6 }

// IsOnion reports whether a is OnionV2 or OnionV3.
func (a Address) IsOnion() bool { return a.family == OnionV2 || a.family == OnionV3 }

// IsI2P reports whether a is I2PB32.
func (a Address) IsI2P() bool { return a.family == I2PB32 }

// IsLoki reports whether a is Loki.
func (a Address) IsLoki() bool { return a.family == Loki }

// Port returns the address's port.
func (a Address) Port() uint16 { return a.port }

// WithPort returns a copy of a with its port replaced.
func (a Address) WithPort(port uint16) Address {
	b := a
	b.port = port
	return b
}

// ParseError describes why Parse rejected an address string.
type ParseError struct {
	Kind    ParseErrorKind
	Address string
	Length  int
	Expected string
	Err     error
}

// ParseErrorKind enumerates the ways Parse can fail.
type ParseErrorKind int

const (
	ErrWrongLength ParseErrorKind = iota
	ErrUnrecognizedFormat
	ErrMissingPort
	ErrBadPort
)

func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrWrongLength:
		return fmt.Sprintf("address %q has wrong length (%d) for %s", e.Address, e.Length, e.Expected)
	case ErrMissingPort:
		return fmt.Sprintf("address %q is missing a port", e.Address)
	case ErrBadPort:
		return fmt.Sprintf("address %q has an invalid port: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("unrecognized address format: %q", e.Address)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses host:port into an Address. host may be a dotted IPv4
// address, a bracketed IPv6 address, or a base32 label suffixed with
// ".onion", ".b32.i2p", or ".loki".
func Parse(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, &ParseError{Kind: ErrMissingPort, Address: s}
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, &ParseError{Kind: ErrBadPort, Address: s, Err: err}
	}

	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return Address{family: IPv4, ip: v4, port: uint16(port)}, nil
		}
		return Address{family: IPv6, ip: ip.To16(), port: uint16(port)}, nil
	}

	if label, ok := strings.CutSuffix(host, ".onion"); ok {
		switch len(label) {
		case 16:
			return Address{family: OnionV2, label: strings.ToLower(label), port: uint16(port)}, nil
		case 56:
			return Address{family: OnionV3, label: strings.ToLower(label), port: uint16(port)}, nil
		default:
			return Address{}, &ParseError{
				Kind: ErrWrongLength, Address: label, Length: len(label), Expected: "16 or 56",
			}
		}
	}

	if label, ok := strings.CutSuffix(host, ".b32.i2p"); ok {
		if len(label) != 52 {
			return Address{}, &ParseError{
				Kind: ErrWrongLength, Address: label, Length: len(label), Expected: "52",
			}
		}
		return Address{family: I2PB32, label: strings.ToLower(label), port: uint16(port)}, nil
	}

	if label, ok := strings.CutSuffix(host, ".loki"); ok {
		return Address{family: Loki, label: strings.ToLower(label), port: uint16(port)}, nil
	}

	return Address{}, &ParseError{Kind: ErrUnrecognizedFormat, Address: s}
}

// String is the inverse of Parse, with IPv6 addresses bracketed.
func (a Address) String() string {
	switch a.family {
	case IPv4, IPv6:
		return net.JoinHostPort(a.ip.String(), strconv.Itoa(int(a.port)))
	case OnionV2, OnionV3:
		return fmt.Sprintf("%s.onion:%d", a.label, a.port)
	case I2PB32:
		return fmt.Sprintf("%s.b32.i2p:%d", a.label, a.port)
	case Loki:
		return fmt.Sprintf("%s.loki:%d", a.label, a.port)
	}
	return fmt.Sprintf("<invalid address %#v>", a)
}

// AddressError describes a failure packing, unpacking, or dialing an
// Address.
type AddressError struct {
	Kind   AddressErrorKind
	Length int
	Err    error
}

// AddressErrorKind enumerates the ways address byte operations can fail.
type AddressErrorKind int

const (
	ErrInvalidBytearray AddressErrorKind = iota
	ErrLokiUnsupported
	ErrInvalidAddressType
	ErrTCPStream
)

func (e *AddressError) Error() string {
	switch e.Kind {
	case ErrInvalidBytearray:
		return fmt.Sprintf("unexpected number of bytes (%d)", e.Length)
	case ErrLokiUnsupported:
		return "packing a Loki address is not implemented"
	case ErrInvalidAddressType:
		return "address is of an invalid type for this operation"
	case ErrTCPStream:
		return fmt.Sprintf("error creating tcp stream: %v", e.Err)
	}
	return "address error"
}

func (e *AddressError) Unwrap() error { return e.Err }

// Pack produces the compact binary form described in spec.md §3: the
// address payload followed by the port, little-endian. Loki packing is
// an open question upstream (see DESIGN.md) and returns ErrLokiUnsupported.
func (a Address) Pack() ([]byte, error) {
	var payload []byte

	switch a.family {
	case IPv4:
		payload = []byte(a.ip.To4())
	case IPv6:
		payload = []byte(a.ip.To16())
	case OnionV2, OnionV3, I2PB32:
		decoded, err := base32Encoding.DecodeString(a.label)
		if err != nil {
			return nil, &AddressError{Kind: ErrInvalidAddressType, Err: err}
		}
		payload = decoded
	case Loki:
		return nil, &AddressError{Kind: ErrLokiUnsupported}
	default:
		return nil, &AddressError{Kind: ErrInvalidAddressType}
	}

	out := make([]byte, len(payload)+2)
	copy(out, payload)
	out[len(payload)] = byte(a.port)
	out[len(payload)+1] = byte(a.port >> 8)
	return out, nil
}

// Unpack dispatches on len(b) alone (6, 12, 18, 34, 37) to recover the
// Address packed by Pack.
func Unpack(b []byte) (Address, error) {
	switch len(b) {
	case 6:
		return unpackClearnet(b, IPv4, 4)
	case 18:
		return unpackClearnet(b, IPv6, 16)
	case 12:
		return unpackOverlay(b, OnionV2, 10)
	case 37:
		return unpackOverlay(b, OnionV3, 35)
	case 34:
		return unpackOverlay(b, I2PB32, 32)
	default:
		return Address{}, &AddressError{Kind: ErrInvalidBytearray, Length: len(b)}
	}
}

func unpackClearnet(b []byte, family Family, ipLen int) (Address, error) {
	ip := make(net.IP, ipLen)
	copy(ip, b[:ipLen])
	port := uint16(b[ipLen]) | uint16(b[ipLen+1])<<8
	return Address{family: family, ip: ip, port: port}, nil
}

func unpackOverlay(b []byte, family Family, labelLen int) (Address, error) {
	port := uint16(b[labelLen]) | uint16(b[labelLen+1])<<8
	label := base32Encoding.EncodeToString(b[:labelLen])
	return Address{family: family, label: label, port: port}, nil
}

// TryConnect dials a over plain TCP, returning the connection, which
// serves as both the reader and the writer. It is only defined for
// IPv4/IPv6; overlay transports (Tor/I2P/Loki tunnels, SOCKS proxies)
// are an application concern — see internal/overlaydial for one way to
// supply them.
func (a Address) TryConnect() (net.Conn, error) {
	if !a.IsClearnet() {
		return nil, &AddressError{Kind: ErrInvalidAddressType}
	}
	conn, err := net.Dial("tcp", a.String())
	if err != nil {
		return nil, &AddressError{Kind: ErrTCPStream, Err: err}
	}
	return conn, nil
}
