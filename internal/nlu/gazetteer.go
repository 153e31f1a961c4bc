package nlu

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// defaultServices lists well-known services in match priority order.
// No entry may be a substring of another, otherwise the shorter one shadows it.
var defaultServices = []string{
	"netflix",
	"spotify",
	"hulu",
	"disney+",
	"amazon prime",
	"youtube premium",
	"apple music",
	"apple tv+",
	"hbo max",
	"paramount+",
	"peacock",
	"crunchyroll",
	"audible",
	"adobe",
	"dropbox",
	"icloud",
	"google one",
	"chatgpt",
	"notion",
	"slack",
	"zoom",
	"github",
	"figma",
	"canva",
	"duolingo",
	"headspace",
	"calm",
	"nordvpn",
	"xbox game pass",
	"playstation plus",
}

// Gazetteer is the shared lookup table of known service names used by both
// entity extraction and intent classification.
type Gazetteer struct {
	names []string
}

// DefaultGazetteer returns the built-in service table.
func DefaultGazetteer() *Gazetteer {
	return NewGazetteer(defaultServices...)
}

// NewGazetteer builds a table from names, lower-casing and dropping blanks and duplicates.
func NewGazetteer(names ...string) *Gazetteer {
	g := &Gazetteer{}
	g.add(names)
	return g
}

// With returns a copy of g extended with extra names appended after the existing ones.
func (g *Gazetteer) With(extra ...string) *Gazetteer {
	out := &Gazetteer{names: append([]string(nil), g.names...)}
	out.add(extra)
	return out
}

func (g *Gazetteer) add(names []string) {
	seen := make(map[string]struct{}, len(g.names)+len(names))
	for _, n := range g.names {
		seen[n] = struct{}{}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		g.names = append(g.names, n)
	}
}

// Names returns a copy of the table in priority order.
func (g *Gazetteer) Names() []string {
	return append([]string(nil), g.names...)
}

// Match returns the first known name contained in normalized text.
func (g *Gazetteer) Match(normalized string) (string, bool) {
	if g == nil {
		return "", false
	}
	for _, name := range g.names {
		if strings.Contains(normalized, name) {
			return name, true
		}
	}
	return "", false
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
