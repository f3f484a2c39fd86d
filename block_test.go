package cubit

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
)

func TestPackShifts(t *testing.T) {
	tests := []struct {
		shifts ShiftVector
		meta   Metadata
		bytes  [MetadataSize]byte
	}{
		{ShiftVector{}, 0, [3]byte{0, 0, 0}},
		{ShiftVector{1, 2, 3, 4, 5, 6}, 0x00A72E, [3]byte{0x00, 0xA7, 0x2E}},
		{ShiftVector{7, 7, 7, 7, 7, 7}, 0x03FFFF, [3]byte{0x03, 0xFF, 0xFF}},
		{ShiftVector{7, 0, 0, 0, 0, 0}, 0x038000, [3]byte{0x03, 0x80, 0x00}},
		{ShiftVector{0, 0, 0, 0, 0, 1}, 0x000001, [3]byte{0x00, 0x00, 0x01}},
	}

	for _, tt := range tests {
		m := PackShifts(tt.shifts)
		if m != tt.meta {
			t.Errorf("PackShifts(%v) = %06x, want %06x", tt.shifts, uint32(m), uint32(tt.meta))
		}
		if m.Bytes() != tt.bytes {
			t.Errorf("Bytes() = %x, want %x", m.Bytes(), tt.bytes)
		}
		if m.Shifts() != tt.shifts {
			t.Errorf("Shifts() = %v, want %v", m.Shifts(), tt.shifts)
		}
		b := tt.bytes
		parsed, err := MetadataFromBytes(b[:])
		if err != nil {
			t.Fatalf("MetadataFromBytes failed: %v", err)
		}
		if parsed != m {
			t.Errorf("MetadataFromBytes = %06x, want %06x", uint32(parsed), uint32(m))
		}
	}
}

func TestMetadataShiftsInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 1000; i++ {
		b := []byte{byte(rng.IntN(256)), byte(rng.IntN(256)), byte(rng.IntN(256))}
		m, err := MetadataFromBytes(b)
		if err != nil {
			t.Fatalf("MetadataFromBytes failed: %v", err)
		}
		for _, s := range m.Shifts() {
			if s < 0 || s > 7 {
				t.Fatalf("metadata %x: shift %d out of range", b, s)
			}
		}
	}
}

func TestMetadataFromBytesShort(t *testing.T) {
	_, err := MetadataFromBytes([]byte{1, 2})
	if !errors.Is(err, ErrBlockReconstruction) {
		t.Errorf("expected ErrBlockReconstruction, got %v", err)
	}
}

func TestDecodeBlockPattern(t *testing.T) {
	tests := []struct {
		name  string
		rep   byte
		meta  Metadata
		bytes []byte
	}{
		// Even columns copy the representative bit; odd columns hold it in
		// rows 2 and 3 and its complement elsewhere.
		{"zero", 0x00, 0, []byte{0x55, 0x55, 0x00, 0x00, 0x55, 0x55}},
		{"ones", 0xFF, 0, []byte{0xAA, 0xAA, 0xFF, 0xFF, 0xAA, 0xAA}},
		{"high nibble", 0xF0, 0, []byte{0xA5, 0xA5, 0xF0, 0xF0, 0xA5, 0xA5}},
		{"shifted", 0x00, PackShifts(ShiftVector{1, 0, 0, 0, 0, 2}), []byte{0xAA, 0x55, 0x00, 0x00, 0x55, 0x55}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DecodeBlock(tt.rep, tt.meta)
			got, err := FromGrid(g, 0)
			if err != nil {
				t.Fatalf("FromGrid failed: %v", err)
			}
			if !bytes.Equal(got, tt.bytes) {
				t.Errorf("DecodeBlock(%02x) = %x, want %x", tt.rep, got, tt.bytes)
			}
		})
	}
}

func TestEncodeBlock(t *testing.T) {
	res := EncodeBlock(Grid{}, DefaultTrials, newBlockRand(1, 0))
	if res.Status != BlockOK {
		t.Fatalf("expected BlockOK, got %v (%v)", res.Status, res.Err)
	}
	if res.Representative != 0 || res.Meta != 0 {
		t.Errorf("zero grid: got rep %02x meta %06x", res.Representative, uint32(res.Meta))
	}
	if res.Err != nil {
		t.Errorf("unexpected error: %v", res.Err)
	}
}

func TestEncodeBlockFallback(t *testing.T) {
	g := gridOf(0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x0F)

	for _, tc := range []struct {
		name   string
		trials int
		rng    *rand.Rand
	}{
		{"no trials", 0, newBlockRand(1, 0)},
		{"nil rng", 10, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := EncodeBlock(g, tc.trials, tc.rng)
			if res.Status != BlockFallback {
				t.Fatalf("expected BlockFallback, got %v", res.Status)
			}
			if res.Representative != MajorityVote(&g) {
				t.Errorf("fallback rep %02x, want majority %02x", res.Representative, MajorityVote(&g))
			}
			if res.Meta != 0 {
				t.Errorf("fallback meta %06x, want 0", uint32(res.Meta))
			}
			if !errors.Is(res.Err, ErrBlockReconstruction) || !errors.Is(res.Err, ErrSearch) {
				t.Errorf("unexpected fallback error: %v", res.Err)
			}
		})
	}
}

func TestDecodeBlockBytes(t *testing.T) {
	res := decodeBlockBytes(0x00, 0, 2)
	if res.Status != BlockOK {
		t.Fatalf("expected BlockOK, got %v (%v)", res.Status, res.Err)
	}
	if want := []byte{0x55, 0x55, 0x00, 0x00}; !bytes.Equal(res.Data, want) {
		t.Errorf("got %x, want %x", res.Data, want)
	}
}

func TestDecodeBlockBytesFallback(t *testing.T) {
	res := decodeBlockBytes(0xFF, 0, 9)
	if res.Status != BlockFallback {
		t.Fatalf("expected BlockFallback, got %v", res.Status)
	}
	if !bytes.Equal(res.Data, make([]byte, BlockSize)) {
		t.Errorf("fallback should zero-fill a full block, got %x", res.Data)
	}
	if !errors.Is(res.Err, ErrInvalidPadding) {
		t.Errorf("expected ErrInvalidPadding, got %v", res.Err)
	}

	res = decodeFallback(4, ErrBlockReconstruction)
	if len(res.Data) != 2 {
		t.Errorf("fallback with padding 4: got %d bytes, want 2", len(res.Data))
	}
}

func TestBlockStatusString(t *testing.T) {
	if BlockOK.String() != "ok" || BlockFallback.String() != "fallback" {
		t.Errorf("unexpected names %q %q", BlockOK, BlockFallback)
	}
	if BlockStatus(9).String() != "unknown(9)" {
		t.Errorf("unexpected name %q", BlockStatus(9))
	}
}
