// ABOUTME: ICY metadata block codec for Shoutcast/Icecast streams
// ABOUTME: Reads and builds length-prefixed, NUL-padded blocks and parses StreamTitle
package icy

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// MaxBlock is the largest payload a single length byte can describe.
const MaxBlock = 255 * 16

// BuildBlock encodes text as an ICY metadata block with 16-byte padding.
// Returns length byte (count of 16-byte chunks) followed by padded payload.
func BuildBlock(text string) []byte {
	if text == "" {
		return []byte{0x00}
	}

	payload := []byte(text)
	if len(payload) > MaxBlock {
		payload = payload[:MaxBlock]
	}

	blocks := (len(payload) + 15) / 16
	pad := blocks*16 - len(payload)

	var buf bytes.Buffer
	buf.WriteByte(byte(blocks))
	buf.Write(payload)
	if pad > 0 {
		buf.Write(bytes.Repeat([]byte{0x00}, pad))
	}

	return buf.Bytes()
}

// ReadBlock reads one metadata block from r and returns its text without padding.
// An empty block yields "".
func ReadBlock(r io.Reader) (string, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(r, lenByte[:]); err != nil {
		return "", fmt.Errorf("read length byte: %w", err)
	}

	size := int(lenByte[0]) * 16
	if size == 0 {
		return "", nil
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", fmt.Errorf("read metadata payload: %w", err)
	}

	return string(bytes.TrimRight(payload, "\x00")), nil
}

// ParseStreamTitle extracts the StreamTitle value from a metadata block.
// Titles may contain single quotes, so the value ends at the last "';" pair.
func ParseStreamTitle(meta string) string {
	const key = "StreamTitle='"

	start := strings.Index(meta, key)
	if start < 0 {
		return ""
	}
	rest := meta[start+len(key):]

	if end := strings.LastIndex(rest, "';"); end >= 0 {
		// StreamUrl and friends follow StreamTitle; stop at the first field boundary.
		if next := strings.Index(rest, "';Stream"); next >= 0 {
			end = next
		}
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(strings.TrimSuffix(rest, "'"))
}

// SplitTitle splits "Artist - Title". Without a separator the whole text is the title.
func SplitTitle(streamTitle string) (artist, title string) {
	streamTitle = strings.TrimSpace(streamTitle)
	if a, t, ok := strings.Cut(streamTitle, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", streamTitle
}
