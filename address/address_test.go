package address

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripIPv4(t *testing.T) {
	a, err := Parse("127.0.0.1:4321")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	packed, err := a.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	want := []byte{127, 0, 0, 1, 225, 16}
	if !bytes.Equal(packed, want) {
		t.Fatalf("Pack() = %v, want %v", packed, want)
	}

	unpacked, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.String() != "127.0.0.1:4321" {
		t.Fatalf("Unpack().String() = %q, want 127.0.0.1:4321", unpacked.String())
	}
}

func TestRoundTripIPv6(t *testing.T) {
	const s = "[1001:2002:3003:4004:5005:6006:7007:8008]:4321"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	packed, err := a.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	want := []byte{16, 1, 32, 2, 48, 3, 64, 4, 80, 5, 96, 6, 112, 7, 128, 8, 225, 16}
	if !bytes.Equal(packed, want) {
		t.Fatalf("Pack() = %v, want %v", packed, want)
	}
	unpacked, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.String() != s {
		t.Fatalf("Unpack().String() = %q, want %q", unpacked.String(), s)
	}
}

func TestRoundTripOnionV2(t *testing.T) {
	const s = "ytcnzluhaxidtbf4.onion:4321"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	packed, err := a.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	want := []byte{196, 196, 220, 174, 135, 5, 208, 57, 132, 188, 225, 16}
	if !bytes.Equal(packed, want) {
		t.Fatalf("Pack() = %v, want %v", packed, want)
	}
	unpacked, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.String() != s {
		t.Fatalf("Unpack().String() = %q, want %q", unpacked.String(), s)
	}
}

func TestRoundTripOnionV3(t *testing.T) {
	const s = "trackd5xiih3z7xyvvkyz2n65lehqziayjpxzsau3mwccwlelxrdrgid.onion:4321"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	packed, err := a.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packed) != 37 {
		t.Fatalf("Pack() len = %d, want 37", len(packed))
	}
	unpacked, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.String() != s {
		t.Fatalf("Unpack().String() = %q, want %q", unpacked.String(), s)
	}
}

func TestRoundTripI2PB32(t *testing.T) {
	const s = "udhdrtrcetjm5sxzskjyr5ztpeszydbh4dpl3pl4utgqqw2v4jna.b32.i2p:4321"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	packed, err := a.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packed) != 34 {
		t.Fatalf("Pack() len = %d, want 34", len(packed))
	}
	unpacked, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.String() != s {
		t.Fatalf("Unpack().String() = %q, want %q", unpacked.String(), s)
	}
}

func TestParseLoki(t *testing.T) {
	const s = "dw68y1xhptqbhcm5s8aaaip6dbopykagig5q5u1za4c7pzxto77y.loki:4321"
	a, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Family() != Loki {
		t.Fatalf("Family() = %v, want Loki", a.Family())
	}
	if _, err := a.Pack(); err == nil {
		t.Fatal("Pack() on a Loki address should fail: packing is unimplemented upstream")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		addr string
	}{
		{"missing port", "127.0.0.1"},
		{"wrong onion length", "toolong1234567890.onion:1"},
		{"unrecognized", "not-an-address"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Parse(c.addr); err == nil {
				t.Fatalf("Parse(%q): expected error", c.addr)
			}
		})
	}
}

func TestUnpackInvalidLength(t *testing.T) {
	_, err := Unpack(make([]byte, 7))
	if err == nil {
		t.Fatal("expected error for invalid length")
	}
	var addrErr *AddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("expected *AddressError, got %T", err)
	}
	if addrErr.Kind != ErrInvalidBytearray || addrErr.Length != 7 {
		t.Fatalf("got %+v", addrErr)
	}
}

func TestWithPortAndPredicates(t *testing.T) {
	a, err := Parse("127.0.0.1:4321")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !a.IsClearnet() || a.IsOnion() || a.IsI2P() || a.IsLoki() {
		t.Fatalf("predicate mismatch for %+v", a)
	}
	b := a.WithPort(1234)
	if b.String() != "127.0.0.1:1234" {
		t.Fatalf("WithPort: got %q", b.String())
	}
	if a.Port() != 4321 {
		t.Fatalf("original address mutated by WithPort")
	}
}
