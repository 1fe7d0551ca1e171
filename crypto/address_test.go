package crypto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0x42
	raw[19] = 0x07
	addr := NewAddress(FallPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, "fall1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %x vs %x", decoded.Bytes(), addr.Bytes())
	}
	if decoded.Prefix() != FallPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	a := DeriveAddress([]byte("vault"), []byte("pool-1"))
	b := DeriveAddress([]byte("vault"), []byte("pool-1"))
	c := DeriveAddress([]byte("vault"), []byte("pool-2"))
	if !a.Equal(b) {
		t.Fatalf("expected identical derivation")
	}
	if a.Equal(c) {
		t.Fatalf("expected distinct derivation for distinct inputs")
	}
	if len(a.Bytes()) != AddressLength {
		t.Fatalf("unexpected length %d", len(a.Bytes()))
	}
}

func TestAddressJSON(t *testing.T) {
	addr := DeriveAddress([]byte("json"))
	payload, err := json.Marshal(struct {
		Owner Address `json:"owner"`
	}{Owner: addr})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct {
		Owner Address `json:"owner"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Owner.Equal(addr) {
		t.Fatalf("json round trip mismatch")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := DecodeAddress(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
