package payload

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"!!!not base64!!!",
		"AA",                // decodes, but not a valid stream
		base64.StdEncoding.EncodeToString([]byte("not json at all")),
	}
	for _, in := range cases {
		if _, err := Decode(in); err != ErrInvalidPayload {
			t.Errorf("Decode(%q): expected ErrInvalidPayload, got %v", in, err)
		}
	}
}

func TestRoundTripBypass(t *testing.T) {
	// Short config with no repetition: the encoder must fall back to the
	// bypass form rather than grow the stream.
	cfg := Config{Manual: []string{"udp://a.example:1/x"}}
	enc := Encode(cfg)
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cfg)
	}
}

func TestRoundTripCompressed(t *testing.T) {
	cfg := Config{DoubleNewline: true}
	for i := 0; i < 15; i++ {
		cfg.Manual = append(cfg.Manual, "udp://tracker.opentrackr.example:1337/announce/"+strings.Repeat("x", i))
	}
	enc := Encode(cfg)

	// The repeated announce URLs must actually engage the dictionary:
	// the restored stream starts with an entry count, not the bypass
	// marker.
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("encoded payload is not base64: %v", err)
	}
	units := restoreEscapes(data)
	if len(units) == 0 || units[0] == escapeMarker {
		t.Fatalf("expected compressed stream, got bypass")
	}

	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, cfg)
	}
}

func TestRoundTripNonLatinAndAstral(t *testing.T) {
	cfg := Config{
		Sources: []string{"https://xn--r8jz45g.example/リスト.txt"},
		Manual:  []string{"udp://tracker.example:6969/announce?tag=🚀"},
	}
	got, err := Decode(Encode(cfg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cfg)
	}
}

func TestDecodeSpacesAsPlus(t *testing.T) {
	cfg := Config{Manual: []string{"udp://t.example:1/a", "udp://t.example:1/b"}}
	enc := Encode(cfg)
	// A '+' arriving through a query string shows up as a space.
	mangled := strings.ReplaceAll(enc, "+", " ")
	got, err := Decode(mangled)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch after space mangling")
	}
}

func TestDecodeWithoutPadding(t *testing.T) {
	cfg := Config{Manual: []string{"udp://pad.example:1/x"}}
	enc := strings.TrimRight(Encode(cfg), "=")
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode unpadded: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip mismatch without padding")
	}
}

func TestDecodeFieldDefaults(t *testing.T) {
	// Missing fields and wrong-typed lists degrade to empty, never error.
	for _, doc := range []string{`{}`, `{"sources":"nope","manual":42}`} {
		units := utf16.Encode([]rune(doc))
		enc := base64.StdEncoding.EncodeToString(escapeUnits(append([]uint16{escapeMarker}, units...)))
		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("decode %s: %v", doc, err)
		}
		if got.Sources != nil || got.Manual != nil || got.DoubleNewline {
			t.Errorf("decode %s: expected zero config, got %+v", doc, got)
		}
	}
}

func TestRestoreEscapes(t *testing.T) {
	cases := []struct {
		in   []byte
		want []uint16
	}{
		{[]byte{0x41, 0x42}, []uint16{0x41, 0x42}},
		{[]byte{0xFF, 0x34, 0x12, 0x41}, []uint16{0x1234, 0x41}},
		{[]byte{0xFF}, []uint16{0xFF}},             // lone marker passes through
		{[]byte{0x41, 0xFF, 0x00}, []uint16{0x41, 0xFF, 0x00}}, // marker without room
	}
	for _, c := range cases {
		if got := restoreEscapes(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("restoreEscapes(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestEscapeRestoreInverse(t *testing.T) {
	units := []uint16{0x00, 0x41, 0xFE, 0xFF, 0x100, 0xE000, 0xFFFF}
	if got := restoreEscapes(escapeUnits(units)); !reflect.DeepEqual(got, units) {
		t.Fatalf("escape/restore not inverse: got %v want %v", got, units)
	}
}

func TestDecompressNestedMarkers(t *testing.T) {
	// Entry 1 embeds a marker for entry 0; the body references both.
	units := []uint16{
		2,
		0, 2, 'X', 'Y', // entry 0 = "XY"
		0, 2, dictBase, 'Z', // entry 1 = "XYZ"
		dictBase + 1, '-', dictBase,
	}
	got, err := decompress(units)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got != "XYZ-XY" {
		t.Fatalf("decompress = %q, want %q", got, "XYZ-XY")
	}
}

func TestDecompressForwardMarkerIsLiteral(t *testing.T) {
	// A marker referencing its own or a later entry is not substituted.
	units := []uint16{
		1,
		0, 2, dictBase, 'A', // entry 0 embeds marker 0 itself
		dictBase,
	}
	got, err := decompress(units)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got != string(rune(dictBase))+"A" {
		t.Fatalf("decompress = %q, unexpected substitution", got)
	}
}

func TestDecompressTruncated(t *testing.T) {
	cases := [][]uint16{
		{},
		{3, 0, 5, 'a'},  // entry shorter than declared
		{1, 0},          // header cut off
		{0x100, 'a'},    // count out of byte range
	}
	for _, c := range cases {
		if _, err := decompress(c); err == nil {
			t.Errorf("decompress(%v): expected error", c)
		}
	}
}

func TestCompressMarkerRangeInputBypasses(t *testing.T) {
	units := utf16.Encode([]rune("aaaa" + string(rune(0xE005)) + "aaaa"))
	out := compress(units)
	if len(out) == 0 || out[0] != escapeMarker {
		t.Fatalf("input containing private-use units must bypass compression")
	}
}
