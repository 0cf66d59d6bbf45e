// Package citation parses the ids MediaWiki gives to citation markers
// (the superscript [1] links in rendered articles) and renders their
// occurrence suffixes the way the reference list shows them.
package citation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Citation is one marker in the article body.
//
// RawID is the verbatim id attribute of the enclosing <sup> element and is
// the natural key. Number is the user-visible footnote number that appears
// inside the brackets. Name is the reference name, either the name attribute
// of a <ref> or one generated by VisualEditor (":0", ":1"...); empty when the
// reference is unnamed. Suffix is the zero-based occurrence index added when
// the same reference is used more than once; empty when absent.
//
// Citation is a comparable value: two citations are equal iff all fields are.
type Citation struct {
	RawID  string `json:"raw_id"`
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// The name group is greedy so it runs up to the last "_<digits>" separator,
// which lets names themselves contain "_" and ":".
var idPattern = regexp.MustCompile(`^cite_ref-(?:(.+)_)?(\d+)(?:-(\d+))?$`)

// ParseError reports an id that does not follow the cite_ref grammar.
type ParseError struct {
	RawID string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse ref_id %q", e.RawID)
}

// Parse splits a marker id such as "cite_ref-:0_2-1" into its parts.
// The whole string must match; anything else is a *ParseError.
func Parse(rawID string) (Citation, error) {
	m := idPattern.FindStringSubmatch(rawID)
	if m == nil {
		return Citation{}, &ParseError{RawID: rawID}
	}
	return Citation{
		RawID:  rawID,
		Name:   m[1],
		Number: m[2],
		Suffix: m[3],
	}, nil
}

// MustParse is like Parse but panics on malformed ids. Intended for tests
// and literals.
func MustParse(rawID string) Citation {
	c, err := Parse(rawID)
	if err != nil {
		panic(err)
	}
	return c
}

// HasSuffix reports whether the citation carries an occurrence index.
func (c Citation) HasSuffix() bool {
	return c.Suffix != ""
}

// RenderSuffix returns the suffix in the letter form used by the
// reference list: "0" -> "a", "25" -> "z", "26" -> "aa". It returns ""
// when there is no suffix.
func (c Citation) RenderSuffix() (string, error) {
	if c.Suffix == "" {
		return "", nil
	}
	n, err := strconv.Atoi(c.Suffix)
	if err != nil {
		return "", fmt.Errorf("render suffix of %s: %w", c.RawID, err)
	}
	if n < 0 {
		return "", fmt.Errorf("render suffix of %s: negative index %d", c.RawID, n)
	}
	// The rendered label is for index n+1.
	if n == math.MaxInt {
		return "", fmt.Errorf("render suffix of %s: index %d out of range", c.RawID, n)
	}
	return BijectiveHexavigesimal(n + 1), nil
}

// RenderedSuffix is RenderSuffix for callers that only have well-formed
// citations. A suffix too large for an int renders as "".
func (c Citation) RenderedSuffix() string {
	s, err := c.RenderSuffix()
	if err != nil {
		return ""
	}
	return s
}

// Label is the footnote label a reader sees next to the backlink, e.g. "2b".
func (c Citation) Label() string {
	return c.Number + c.RenderedSuffix()
}

// BijectiveHexavigesimal converts a 1-based integer to bijective base-26
// using a-z. There is no zero digit: "z" is followed by "aa".
// Non-positive input yields "".
func BijectiveHexavigesimal(n int) string {
	if n <= 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n != 0 {
		i--
		buf[i] = byte('a' + (n-1)%26)
		n = (n - 1) / 26
	}
	return string(buf[i:])
}
