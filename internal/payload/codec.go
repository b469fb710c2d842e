// Package payload implements the compact wire encoding for request
// configurations: Base64 wrapping a Latin-1-safe escaped byte stream
// wrapping an optionally dictionary-compressed JSON document.
//
// The codec operates on UTF-16 code units internally so that payloads
// interoperate bit-exactly with encoders working on 16-bit strings.
package payload

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf16"
)

const (
	// escapeMarker introduces a 3-unit escape sequence in the byte
	// stream: marker, low byte, high byte.
	escapeMarker = 0xFF

	// dictBase is the first private-use code point used as a
	// dictionary marker; entry i is referenced by dictBase+i.
	dictBase = 0xE000

	// maxDictEntries is 254, not 255: a count byte of 0xFF collides
	// with the compression-bypass marker and can never be decoded.
	maxDictEntries = 254

	minSeedLen = 4
	maxEntryLen = 64
)

// ErrInvalidPayload is returned for any structural failure while
// decoding: bad Base64, a malformed dictionary, or invalid JSON.
var ErrInvalidPayload = errors.New("Invalid Base64 JSON")

// Config is the per-request aggregation configuration carried by an
// encoded payload. It is built once per request and never persisted.
type Config struct {
	Sources       []string `json:"sources"`
	Manual        []string `json:"manual"`
	DoubleNewline bool     `json:"doubleNewline"`
}

// Decode unpacks an encoded payload into a Config. Every stage is
// total; any failure collapses to ErrInvalidPayload.
func Decode(payload string) (Config, error) {
	// Literal spaces are a URL-transport artifact: '+' decoded as ' '.
	raw := strings.ReplaceAll(payload, " ", "+")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// tolerate padding stripped in transit
		if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return Config{}, ErrInvalidPayload
		}
	}
	units := restoreEscapes(data)
	doc, err := decompress(units)
	if err != nil {
		return Config{}, ErrInvalidPayload
	}
	cfg, err := parseDocument(doc)
	if err != nil {
		return Config{}, ErrInvalidPayload
	}
	return cfg, nil
}

// Encode packs a Config into the wire form: Base64(escape(compress(JSON))).
func Encode(cfg Config) string {
	doc, _ := json.Marshal(cfg)
	units := utf16.Encode([]rune(string(doc)))
	return base64.StdEncoding.EncodeToString(escapeUnits(compress(units)))
}

// restoreEscapes rebuilds 16-bit code units from the escaped byte
// stream. A marker byte with at least two bytes remaining consumes the
// next two as little-endian low/high; anything else passes through.
func restoreEscapes(data []byte) []uint16 {
	out := make([]uint16, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == escapeMarker && i+2 < len(data) {
			out = append(out, uint16(data[i+1])|uint16(data[i+2])<<8)
			i += 2
			continue
		}
		out = append(out, uint16(b))
	}
	return out
}

// escapeUnits is the inverse of restoreEscapes. The marker value itself
// is escaped too, so a literal 0xFF can never be misread as a marker.
func escapeUnits(units []uint16) []byte {
	out := make([]byte, 0, len(units))
	for _, u := range units {
		if u < escapeMarker {
			out = append(out, byte(u))
			continue
		}
		out = append(out, escapeMarker, byte(u), byte(u>>8))
	}
	return out
}

// decompress expands a dictionary-compressed unit stream into the JSON
// document text. A leading 0xFF unit bypasses compression entirely.
//
// Expansion is a single scan-and-emit pass: entries are resolved in
// index order, with an entry's embedded markers substituted only when
// they reference a lower index. This is equivalent to the classic
// highest-to-lowest whole-string substitution but never rescans
// already-expanded text.
func decompress(units []uint16) (string, error) {
	if len(units) == 0 {
		return "", errors.New("empty stream")
	}
	if units[0] == escapeMarker {
		return unitString(units[1:]), nil
	}
	if units[0] > 0xFF {
		return "", errors.New("invalid dictionary count")
	}
	n := int(units[0])
	pos := 1
	resolved := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if pos+2 > len(units) {
			return "", errors.New("truncated dictionary header")
		}
		length := int(units[pos])<<8 | int(units[pos+1])
		pos += 2
		if pos+length > len(units) {
			return "", errors.New("truncated dictionary entry")
		}
		resolved = append(resolved, expand(units[pos:pos+length], resolved, i))
		pos += length
	}
	return expand(units[pos:], resolved, n), nil
}

// expand emits text for a unit slice, substituting markers that
// reference one of the first limit resolved entries.
func expand(units []uint16, resolved []string, limit int) string {
	var b strings.Builder
	run := units
	for len(run) > 0 {
		j := int(run[0]) - dictBase
		if j >= 0 && j < limit {
			b.WriteString(resolved[j])
			run = run[1:]
			continue
		}
		// batch plain units until the next in-range marker
		end := 1
		for end < len(run) {
			k := int(run[end]) - dictBase
			if k >= 0 && k < limit {
				break
			}
			end++
		}
		b.WriteString(unitString(run[:end]))
		run = run[end:]
	}
	return b.String()
}

func unitString(units []uint16) string { return string(utf16.Decode(units)) }

// compress builds a dictionary of repeated substrings and replaces each
// occurrence with a private-use marker. Falls back to the 0xFF bypass
// when compression does not pay off or the input already contains
// units in the marker range.
func compress(units []uint16) []uint16 {
	bypass := append([]uint16{escapeMarker}, units...)
	for _, u := range units {
		if u >= dictBase && u < dictBase+0x100 {
			return bypass
		}
	}
	body := append([]uint16(nil), units...)
	var entries [][]uint16
	for len(entries) < maxDictEntries {
		sub := bestRepeat(body)
		if sub == nil {
			break
		}
		body = replaceAll(body, sub, uint16(dictBase+len(entries)))
		entries = append(entries, sub)
	}
	if len(entries) == 0 {
		return bypass
	}
	out := []uint16{uint16(len(entries))}
	for _, e := range entries {
		out = append(out, uint16(len(e)>>8), uint16(len(e)&0xFF))
		out = append(out, e...)
	}
	out = append(out, body...)
	if len(out) >= len(bypass) {
		return bypass
	}
	return out
}

// bestRepeat finds the repeated substring with the best size saving, or
// nil when no substitution would shrink the stream. Seeds on the most
// frequent fixed-length window, extended while occurrences keep
// matching.
func bestRepeat(body []uint16) []uint16 {
	if len(body) < minSeedLen*2 {
		return nil
	}
	seen := make(map[string][]int)
	var order []string
	for i := 0; i+minSeedLen <= len(body); i++ {
		k := unitString(body[i : i+minSeedLen])
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = append(seen[k], i)
	}
	var positions []int
	for _, k := range order { // deterministic pick: highest count, earliest seed
		if len(seen[k]) > len(positions) {
			positions = seen[k]
		}
	}
	if len(positions) < 2 {
		return nil
	}
	length := minSeedLen
	for length < maxEntryLen && positions[0]+length < len(body) {
		next := body[positions[0]+length]
		var kept []int
		for _, p := range positions {
			if p+length < len(body) && body[p+length] == next {
				kept = append(kept, p)
			}
		}
		if len(kept) < 2 {
			break
		}
		positions = kept
		length++
	}
	sub := body[positions[0] : positions[0]+length]
	count := occurrences(body, sub)
	// count*len shrinks to count markers plus a len+2 entry header
	if count*len(sub)-(count+len(sub)+2) <= 0 {
		return nil
	}
	return append([]uint16(nil), sub...)
}

// occurrences counts non-overlapping matches, mirroring replaceAll.
func occurrences(body, sub []uint16) int {
	count := 0
	for i := 0; i+len(sub) <= len(body); {
		if matchAt(body, sub, i) {
			count++
			i += len(sub)
			continue
		}
		i++
	}
	return count
}

func matchAt(body, sub []uint16, at int) bool {
	if at+len(sub) > len(body) {
		return false
	}
	for j, u := range sub {
		if body[at+j] != u {
			return false
		}
	}
	return true
}

func replaceAll(body, sub []uint16, marker uint16) []uint16 {
	out := make([]uint16, 0, len(body))
	for i := 0; i < len(body); {
		if matchAt(body, sub, i) {
			out = append(out, marker)
			i += len(sub)
			continue
		}
		out = append(out, body[i])
		i++
	}
	return out
}

// parseDocument extracts the configuration fields. Missing or
// non-array lists become empty; doubleNewline defaults to false.
func parseDocument(doc string) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Sources: stringList(m["sources"]),
		Manual:  stringList(m["manual"]),
	}
	if v, ok := m["doubleNewline"].(bool); ok {
		cfg.DoubleNewline = v
	}
	return cfg, nil
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
