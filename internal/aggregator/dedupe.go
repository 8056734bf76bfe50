package aggregator

import (
	"net/url"
	"strings"
	"unicode"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/internal/product"
)

// nameKeyLength is the prefix of the normalised name used as a key.
const nameKeyLength = 40

// URLKey normalises a product URL for duplicate detection: scheme and host
// lower-cased, query and fragment dropped, trailing slash trimmed. It is
// empty for the "#" placeholder and unparseable values.
func URLKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == MissingProductURL {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}

// NameKey lower-cases the name, strips punctuation, collapses whitespace
// and keeps the first 40 characters. It is empty for unnamed records.
func NameKey(name string) string {
	if name == UnknownName {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	return helpers.Truncate(helpers.CollapseSpaces(stripped), nameKeyLength)
}

// Dedupe keeps the first record for every URL key and every name key. A
// record is dropped when either of its keys has already been seen, so
// applying Dedupe to its own output changes nothing.
func Dedupe(records []product.Record) []product.Record {
	seenURL := make(map[string]struct{})
	seenName := make(map[string]struct{})
	out := make([]product.Record, 0, len(records))

	for _, r := range records {
		uk := URLKey(r.ProductURL)
		nk := NameKey(r.Name)

		if uk != "" {
			if _, dup := seenURL[uk]; dup {
				continue
			}
		}
		if nk != "" {
			if _, dup := seenName[nk]; dup {
				continue
			}
		}

		if uk != "" {
			seenURL[uk] = struct{}{}
		}
		if nk != "" {
			seenName[nk] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
