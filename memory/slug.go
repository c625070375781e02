package memory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 60

// Slugify turns a title into a file-name-safe slug: lowercase ASCII letters
// and digits, with every other run collapsed to a single '-'. Accents are
// folded first so "Café" becomes "cafe".
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var sb strings.Builder
	sep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sep = false
			sb.WriteRune(r)
			continue
		}
		sep = true
	}

	s := sb.String()
	if len(s) > maxSlugLen {
		cutMidWord := s[maxSlugLen] != '-'
		s = s[:maxSlugLen]
		if i := strings.LastIndexByte(s, '-'); cutMidWord && i > maxSlugLen/2 {
			s = s[:i]
		}
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}
