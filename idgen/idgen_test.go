package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{6, 10, 16} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	id := NanoID(200)()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: malformed %q", id)
	}
}

func TestSlideAndBatch_Prefix(t *testing.T) {
	if s := Slide(); !strings.HasPrefix(s, "sld_") || len(s) != 14 {
		t.Fatalf("Slide: got %q", s)
	}
	if b := Batch(); !strings.HasPrefix(b, "bat_") {
		t.Fatalf("Batch: got %q", b)
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := Slide()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate slide id at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
