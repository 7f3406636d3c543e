// Package naming converts Go identifiers into table and column names.
//
// A Convention is a pure string transform with an override table that is
// consulted before the transform:
//
//	c := naming.LowerWords().WithOverride("ID", "user_id")
//	c.Convert("UserName") // user_name
//	c.Convert("ID")       // user_id
package naming

import (
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Convention names a string transform.
type Convention struct {
	name      string
	fn        func(string) string
	overrides map[string]string
	plural    bool
}

// NoOp returns a convention that keeps names as they are.
func NoOp() *Convention { return &Convention{name: "noop", fn: func(s string) string { return s }} }

// PascalCase returns the convention that joins underscore separated
// segments with their first letter upper-cased.
func PascalCase() *Convention { return &Convention{name: "pascal", fn: pascal} }

// CamelCase is PascalCase with a lower-cased first letter.
func CamelCase() *Convention { return &Convention{name: "camel", fn: camel} }

// LowerWords splits names into words and joins them lower-cased with underscores.
func LowerWords() *Convention {
	return &Convention{name: "lowerWords", fn: func(s string) string {
		return cases.Lower(language.Und).String(words(s))
	}}
}

// UpperWords splits names into words and joins them upper-cased with underscores.
func UpperWords() *Convention {
	return &Convention{name: "upperWords", fn: func(s string) string {
		return cases.Upper(language.Und).String(words(s))
	}}
}

// Parse returns the convention registered under the given name.
// Accepted names are noop, pascal, camel, lowerWords and upperWords.
func Parse(name string) (*Convention, error) {
	switch strings.ToLower(name) {
	case "", "noop", "none":
		return NoOp(), nil
	case "pascal", "pascalcase":
		return PascalCase(), nil
	case "camel", "camelcase":
		return CamelCase(), nil
	case "lowerwords", "lower", "snake":
		return LowerWords(), nil
	case "upperwords", "upper":
		return UpperWords(), nil
	default:
		return nil, fmt.Errorf("naming: unknown convention %q", name)
	}
}

// Name returns the convention name.
func (c *Convention) Name() string { return c.name }

// WithOverride returns a copy of c where from always converts to to.
func (c *Convention) WithOverride(from, to string) *Convention {
	nc := c.clone()
	nc.overrides[from] = to
	return nc
}

// WithOverrides returns a copy of c with all the given overrides added.
func (c *Convention) WithOverrides(m map[string]string) *Convention {
	nc := c.clone()
	maps.Copy(nc.overrides, m)
	return nc
}

// Plural returns a copy of c that pluralizes converted names.
// Overrides are returned verbatim.
func (c *Convention) Plural() *Convention {
	nc := c.clone()
	nc.plural = true
	return nc
}

// Convert applies the convention to s.
func (c *Convention) Convert(s string) string {
	if to, ok := c.overrides[s]; ok {
		return to
	}
	out := c.fn(s)
	if c.plural {
		out = inflect.Pluralize(out)
	}
	return out
}

func (c *Convention) clone() *Convention {
	nc := *c
	nc.overrides = make(map[string]string, len(c.overrides)+1)
	maps.Copy(nc.overrides, c.overrides)
	return &nc
}

// words inserts an underscore before every upper-case letter that does not
// start the string and does not follow an underscore.
func words(s string) string {
	var (
		b    strings.Builder
		prev rune
	)
	b.Grow(len(s) + 4)
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && prev != '_' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func pascal(s string) string {
	var b strings.Builder
	for _, seg := range strings.Split(s, "_") {
		if seg == "" {
			continue
		}
		b.WriteString(upperFirst(seg))
	}
	return b.String()
}

func camel(s string) string {
	p := pascal(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
