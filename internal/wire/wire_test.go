package wire_test

import (
	"bytes"
	"testing"

	"github.com/mickamy/pgwire/internal/wire"
)

func TestBuilderRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  byte
		body func(b *wire.Builder)
	}{
		{
			name: "simple query",
			tag:  'Q',
			body: func(b *wire.Builder) { b.CString("SELECT 1") },
		},
		{
			name: "bind with null param",
			tag:  'B',
			body: func(b *wire.Builder) {
				b.CString("").CString("stmt1").Int16(0).Int16(1).LenPrefixed(nil).Int16(0)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := wire.Begin(nil, tt.tag)
			tt.body(b)
			frame := b.Finish()

			if frame[0] != tt.tag {
				t.Fatalf("tag = %q, want %q", frame[0], tt.tag)
			}

			r := wire.NewReader(bytes.NewReader(frame))
			gotTag, payload, err := r.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if gotTag != tt.tag {
				t.Fatalf("got tag %q, want %q", gotTag, tt.tag)
			}
			if len(payload) != len(frame)-5 {
				t.Fatalf("payload len = %d, want %d", len(payload), len(frame)-5)
			}
		})
	}
}

func TestNextStartupFrame(t *testing.T) {
	t.Parallel()

	b := wire.BeginUntagged(nil)
	b.Int32(196608) // protocol version 3.0
	b.CString("user").CString("postgres")
	b.Byte(0)
	frame := b.Finish()

	got, err := wire.NextStartupFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("NextStartupFrame: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("got %v, want %v", got, frame)
	}
}
