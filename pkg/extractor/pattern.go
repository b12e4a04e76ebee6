package extractor

import (
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// patternCacheSize bounds the number of compiled token sets kept in memory.
// A build normally uses one token set per plugin plus one per Less module.
const patternCacheSize = 256

var patternCache *lru.Cache[string, *regexp.Regexp]

func init() {
	cache, err := lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}
	patternCache = cache
}

// BuildTokenPattern compiles one matcher that succeeds iff any of the given
// tokens appears in the tested text. Tokens are deduplicated and tried
// longest-first so that "#ffffff" wins over its prefix "#fff".
//
// Whitespace inside a token matches any (or no) whitespace, parentheses and
// commas tolerate surrounding whitespace, and a decimal point that starts a
// number matches with or without a leading zero:
//
//	BuildTokenPattern([]string{"rgba(0, 0, 0, 0.5)"}).MatchString("rgba(0,0,0,.5)") // true
//
// Callers must reject an empty token list upstream; an empty list yields a
// pattern that never matches.
func BuildTokenPattern(tokens []string) *regexp.Regexp {
	tokens = normalizeTokens(tokens)
	key := strings.Join(tokens, "\x00")

	if re, ok := patternCache.Get(key); ok {
		return re
	}

	var re *regexp.Regexp
	if len(tokens) == 0 {
		re = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)
	} else {
		re = regexp.MustCompile(tokenAlternation(tokens))
	}

	patternCache.Add(key, re)
	return re
}

// tokenAlternation returns the uncompiled alternation for already normalized
// tokens. It is shared with the composed declaration matcher.
func tokenAlternation(tokens []string) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, "(?:"+escapeToken(tok)+")")
	}
	return strings.Join(parts, "|")
}

// normalizeTokens drops empty and duplicate tokens and orders the rest
// longest-first. Ties keep lexical order so the cache key is stable.
func normalizeTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// escapeToken turns one raw token into a regular expression fragment.
func escapeToken(tok string) string {
	var b strings.Builder
	runes := []rune(tok)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isSpace(r):
			for i+1 < len(runes) && isSpace(runes[i+1]) {
				i++
			}
			b.WriteString(`\s*`)
		case r == '(':
			b.WriteString(`\(\s*`)
		case r == ')':
			b.WriteString(`\s*\)`)
		case r == ',':
			b.WriteString(`\s*,\s*`)
		case r == '0' && i+1 < len(runes) && runes[i+1] == '.' && startsNumber(runes, i):
			// "0.5" also matches ".5"
			b.WriteString(`0?\.`)
			i++
		case r == '.' && startsNumber(runes, i) && i+1 < len(runes) && isDigit(runes[i+1]):
			// ".5" also matches "0.5"
			b.WriteString(`0?\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// startsNumber reports whether the rune at i begins a numeric fragment,
// i.e. it is not preceded by a digit or an identifier character.
func startsNumber(runes []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := runes[i-1]
	if prev == '-' || prev == '+' {
		return true
	}
	return !isDigit(prev) && !isIdent(prev) && prev != '.'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdent(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
