// internal/slug/slug.go
//
// URL-key slug normalizer.
//
// Rules
// -----
//  1. Compose (NFC), then lower-case with the locale's rules.
//  2. Transliterate letters that have no Unicode decomposition (ß, æ, ø,
//     ł, …) through a lookup table; the German locale also spells umlauts
//     out as ae/oe/ue.
//  3. Decompose (NFKD) and drop every non-spacing mark, so “é” → “e”.
//  4. Convert any run of non-[a-z0-9] characters to one separator.  That
//     strips spaces, punctuation, emoji, and unsupported scripts.
//  5. Trim leading / trailing separators.
//
// Blank input yields "", which callers treat as “no usable key”.
//
// Notes
// -----
// • Pure and deterministic; safe for concurrent use.
// • Oxford commas, two spaces after periods.

package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSeparator joins words in a slug.
const DefaultSeparator = "-"

// baseTable covers Latin letters that NFKD leaves intact.
var baseTable = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'ø': "o",
	'œ': "oe",
	'ł': "l",
	'đ': "d",
	'ð': "d",
	'þ': "th",
	'ı': "i",
	'ħ': "h",
	'ŧ': "t",
}

// localeTables override or extend baseTable per language.
var localeTables = map[language.Base]map[rune]string{
	mustBase(language.German): {'ä': "ae", 'ö': "oe", 'ü': "ue"},
	mustBase(language.Danish): {'å': "aa"},
}

func mustBase(t language.Tag) language.Base {
	b, _ := t.Base()
	return b
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLocale selects locale-specific case folding and transliteration.
func WithLocale(tag language.Tag) Option {
	return func(n *Normalizer) { n.tag = tag }
}

// WithSeparator replaces the default "-" separator.
func WithSeparator(sep string) Option {
	return func(n *Normalizer) { n.sep = sep }
}

// Normalizer turns text into URL-safe slugs.  The zero value is not usable;
// construct with New.
type Normalizer struct {
	tag   language.Tag
	sep   string
	table map[rune]string
}

// New returns a Normalizer for language.Und unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{tag: language.Und, sep: DefaultSeparator}
	for _, o := range opts {
		o(n)
	}

	n.table = make(map[rune]string, len(baseTable)+4)
	for r, s := range baseTable {
		n.table[r] = s
	}
	if base, conf := n.tag.Base(); conf != language.No {
		for r, s := range localeTables[base] {
			n.table[r] = s
		}
	}
	return n
}

var defaultNormalizer = New()

// Normalize converts text with the default (locale-neutral) normalizer.
func Normalize(text string) string { return defaultNormalizer.Normalize(text) }

// Normalize converts text → lower-kebab ASCII.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// Casers and transformer chains keep state, so build them per call.
	s := cases.Lower(n.tag).String(norm.NFC.String(text))

	var tr strings.Builder
	tr.Grow(len(s))
	for _, r := range s {
		if rep, ok := n.table[r]; ok {
			tr.WriteString(rep)
			continue
		}
		tr.WriteRune(r)
	}

	strip := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(strip, tr.String())
	if err != nil {
		folded = tr.String()
	}

	var b strings.Builder
	b.Grow(len(folded))
	pending := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteString(n.sep)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
