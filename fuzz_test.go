package wrenlet

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func FuzzSlotsBytes(f *testing.F) {
	f.Add([]byte("seed"))
	f.Add([]byte(""))
	f.Add([]byte{0xff, 0xfe, 'x'})

	f.Fuzz(func(t *testing.T, raw []byte) {
		vm, _ := newTestVM(t, Config{})
		defer vm.Close()
		s := vm.Slots()
		if err := s.Set(0, raw); err != nil {
			t.Fatalf("Set returned unexpected error: %v", err)
		}

		got, err := Get[[]byte](s, 0)
		if err != nil || !bytes.Equal(got, raw) {
			t.Fatalf("expected %q, got %q (%v)", raw, got, err)
		}

		str, err := Get[string](s, 0)
		if utf8.Valid(raw) {
			if err != nil || str != string(raw) {
				t.Fatalf("expected %q, got %q (%v)", raw, str, err)
			}
		} else if err == nil {
			t.Fatalf("expected an encoding error for %q", raw)
		}

		lossy, err := Get[LossyString](s, 0)
		if err != nil || string(lossy) != strings.ToValidUTF8(string(raw), "�") {
			t.Fatalf("unexpected lossy decoding %q (%v)", lossy, err)
		}
	})
}
