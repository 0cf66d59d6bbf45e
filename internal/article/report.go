package article

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/wikirefs/internal/citation"
	"golang.org/x/net/html"
)

// Reference is a resolved citation in a JSON-safe form.
type Reference struct {
	citation.Citation
	RenderedSuffix string `json:"rendered_suffix,omitempty"`
	Text           string `json:"text"`
	HTML           string `json:"html"`
}

// Report is the statements of an article plus, optionally, the reference
// text behind every citation id they use.
type Report struct {
	Title      string               `json:"title,omitempty"`
	Statements []Statement          `json:"statements"`
	References map[string]Reference `json:"references,omitempty"`
}

// Report scans the article and, when withReferences is set, resolves every
// citation. Any parse or resolve error is returned unchanged in the chain.
func (a *Article) Report(withReferences bool) (*Report, error) {
	statements, err := a.Statements()
	if err != nil {
		return nil, err
	}
	if statements == nil {
		statements = []Statement{}
	}
	rep := &Report{
		Title:      a.Title(),
		Statements: statements,
	}
	if !withReferences {
		return rep, nil
	}

	nodes, err := a.BuildCitationMap(statements)
	if err != nil {
		return nil, err
	}
	rep.References = make(map[string]Reference, len(nodes))
	for _, st := range statements {
		for _, c := range st.Citations {
			if _, ok := rep.References[c.RawID]; ok {
				continue
			}
			ref, err := newReference(c, nodes[c.RawID])
			if err != nil {
				return nil, err
			}
			rep.References[c.RawID] = ref
		}
	}
	return rep, nil
}

// CitationCount is the number of markers across all statements.
func (r *Report) CitationCount() int {
	n := 0
	for _, st := range r.Statements {
		n += len(st.Citations)
	}
	return n
}

func newReference(c citation.Citation, n *html.Node) (Reference, error) {
	inner, err := goquery.NewDocumentFromNode(n).Html()
	if err != nil {
		return Reference{}, fmt.Errorf("render reference %s: %w", c.RawID, err)
	}
	return Reference{
		Citation:       c,
		RenderedSuffix: c.RenderedSuffix(),
		Text:           TextContent(n),
		HTML:           inner,
	}, nil
}
