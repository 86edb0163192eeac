package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func hasLatin1(s string) bool {
	for _, r := range s {
		if r >= 0x80 && r <= 0xff {
			return true
		}
	}
	return false
}

// toUTF8 decodes s as GB18030 when it is not valid UTF-8, which is how raw
// GBK response bytes arrive. Valid UTF-8 and undecodable input are returned
// unchanged.
func toUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return decoded
}

// LooksGarbled reports whether s looks like multi-byte Chinese text that was
// decoded one byte per character: high Latin-1 characters or replacement
// characters, and no CJK at all.
func LooksGarbled(s string) bool {
	if s == "" || hasCJK(s) {
		return false
	}
	return hasLatin1(s) || strings.ContainsRune(s, unicode.ReplacementChar)
}

// RepairGarbled decodes s as GB18030: raw bytes when s is not valid UTF-8,
// otherwise each character reinterpreted as a byte. It reports true only
// when the result contains CJK text. A name that already contains CJK is
// returned unchanged.
func RepairGarbled(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if !utf8.ValidString(s) {
		out := strings.TrimSpace(toUTF8(s))
		if !hasCJK(out) {
			return "", false
		}
		return out, true
	}
	if hasCJK(s) {
		return s, true
	}
	if !hasLatin1(s) {
		return "", false
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r&0xff))
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	out := strings.TrimSpace(string(decoded))
	if !hasCJK(out) {
		return "", false
	}
	return out, true
}
