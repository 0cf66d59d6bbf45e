package article

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Stages at which resolving a citation can fail.
const (
	StageMarker = "marker" // no <sup> with the citation id
	StageLink   = "link"   // marker has no fragment link
	StageNote   = "note"   // no <li> with the linked id
	StageText   = "text"   // list item has no span.reference-text
)

// ReferenceNotFoundError reports a citation whose reference text could not
// be located. It indicates markup that does not follow the usual
// marker -> footnote layout.
type ReferenceNotFoundError struct {
	RawID  string
	Stage  string
	Target string
}

func (e *ReferenceNotFoundError) Error() string {
	switch e.Stage {
	case StageMarker:
		return fmt.Sprintf("reference for %s not found: no marker element", e.RawID)
	case StageLink:
		return fmt.Sprintf("reference for %s not found: marker has no footnote link", e.RawID)
	case StageNote:
		return fmt.Sprintf("reference for %s not found: no footnote %q", e.RawID, e.Target)
	case StageText:
		return fmt.Sprintf("reference for %s not found: footnote %q has no reference text", e.RawID, e.Target)
	}
	return fmt.Sprintf("reference for %s not found", e.RawID)
}

// ReferenceFor locates the rendered reference text for a citation id:
// the marker <sup>, its link target fragment, the footnote <li> with that
// id, and finally the span.reference-text inside it.
func (a *Article) ReferenceFor(rawID string) (*html.Node, error) {
	doc := goquery.NewDocumentFromNode(a.root)

	sup := doc.Find(`sup[id=` + cssString(rawID) + `]`).First()
	if sup.Length() == 0 {
		return nil, &ReferenceNotFoundError{RawID: rawID, Stage: StageMarker}
	}
	href, _ := sup.Find("a[href]").First().Attr("href")
	noteID := fragment(href)
	if noteID == "" {
		return nil, &ReferenceNotFoundError{RawID: rawID, Stage: StageLink}
	}
	li := doc.Find(`li[id=` + cssString(noteID) + `]`).First()
	if li.Length() == 0 {
		return nil, &ReferenceNotFoundError{RawID: rawID, Stage: StageNote, Target: noteID}
	}
	text := li.Find("span.reference-text").First()
	if text.Length() == 0 {
		return nil, &ReferenceNotFoundError{RawID: rawID, Stage: StageText, Target: noteID}
	}
	return text.Get(0), nil
}

// BuildCitationMap resolves every distinct citation id used by statements.
// Each id is resolved once; the first failure aborts the build.
func (a *Article) BuildCitationMap(statements []Statement) (map[string]*html.Node, error) {
	refs := make(map[string]*html.Node)
	for _, st := range statements {
		for _, c := range st.Citations {
			if _, ok := refs[c.RawID]; ok {
				continue
			}
			n, err := a.ReferenceFor(c.RawID)
			if err != nil {
				return nil, err
			}
			refs[c.RawID] = n
		}
	}
	return refs, nil
}

// fragment returns the part of href after '#', or all of it when there is
// no '#'.
func fragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// cssString quotes s for use as a CSS attribute value. Ids such as
// "cite_ref-:0_1-0" are not valid identifiers, so they must be quoted.
func cssString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
