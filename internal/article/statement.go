package article

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/wikirefs/internal/citation"
	"golang.org/x/net/html"
)

// Statement is a hunk of prose and the citations that support it, in the
// order the markers appear.
type Statement struct {
	Text      string              `json:"text"`
	Citations []citation.Citation `json:"citations"`
}

// segState is the last kind of thing the segmenter has seen. There is no
// separate start state: the zero value, inText with empty buffers, means
// the last thing seen was an empty string.
type segState int

const (
	inText segState = iota
	inCitationRun
)

func (s segState) String() string {
	switch s {
	case inText:
		return "text"
	case inCitationRun:
		return "citation_run"
	}
	return fmt.Sprintf("segState(%d)", int(s))
}

// segmenter partitions the text leaves of one paragraph into statements.
type segmenter struct {
	state     segState
	words     []string
	citations []citation.Citation
	out       []Statement
}

// ParagraphStatements finds all the statements in a single paragraph.
// Markers trail the statement they support, so consecutive markers attach
// to the same statement, and the first plain text after a marker run closes
// that statement and starts the next one.
//
// A marker whose id does not parse aborts the paragraph with the
// *citation.ParseError wrapped.
func ParagraphStatements(p *html.Node) ([]Statement, error) {
	var s segmenter
	if err := eachTextLeaf(p, s.feed); err != nil {
		return nil, err
	}
	// End of paragraph, but the last statement may still be pending.
	s.flush()
	return s.out, nil
}

func (s *segmenter) feed(n *html.Node) error {
	if strings.TrimSpace(n.Data) == "" {
		return nil
	}
	rawID, isMarker := CitationID(n)
	if !isMarker && isCiteBracket(n) {
		return nil
	}
	switch s.state {
	case inText:
		if isMarker {
			if err := s.addCitation(rawID); err != nil {
				return err
			}
			s.state = inCitationRun
		} else {
			s.words = append(s.words, strings.Fields(n.Data)...)
		}
	case inCitationRun:
		if isMarker {
			return s.addCitation(rawID)
		}
		s.emit()
		s.words = strings.Fields(n.Data)
		s.state = inText
	default:
		return fmt.Errorf("segment paragraph: unknown state %v", s.state)
	}
	return nil
}

func (s *segmenter) addCitation(rawID string) error {
	c, err := citation.Parse(rawID)
	if err != nil {
		return fmt.Errorf("segment paragraph: %w", err)
	}
	s.citations = append(s.citations, c)
	return nil
}

func (s *segmenter) emit() {
	cites := s.citations
	if cites == nil {
		cites = []citation.Citation{}
	}
	s.out = append(s.out, Statement{
		Text:      strings.Join(s.words, " "),
		Citations: cites,
	})
	s.words = nil
	s.citations = nil
}

func (s *segmenter) flush() {
	if len(s.words) > 0 || len(s.citations) > 0 {
		s.emit()
	}
}

// eachTextLeaf calls visit for every text node under n in document order.
func eachTextLeaf(n *html.Node, visit func(*html.Node) error) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if err := visit(c); err != nil {
				return err
			}
		case html.ElementNode:
			if skipElement(c.Data) {
				continue
			}
			if err := eachTextLeaf(c, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// isCiteBracket reports whether n is the bracket decoration inside a marker
// link, as in <a><span class="cite-bracket">[</span>1<span class="cite-bracket">]</span></a>.
func isCiteBracket(n *html.Node) bool {
	span := n.Parent
	if span == nil || span.Type != html.ElementNode || span.Data != "span" {
		return false
	}
	class, _ := attr(span, "class")
	if !slices.Contains(strings.Fields(class), "cite-bracket") {
		return false
	}
	a := span.Parent
	if a == nil || a.Type != html.ElementNode || a.Data != "a" {
		return false
	}
	sup := a.Parent
	return sup != nil && sup.Type == html.ElementNode && sup.Data == "sup" && isMarkerSup(sup)
}

// isMarkerSup reports whether sup carries exactly the "reference" class and
// a non-empty id.
func isMarkerSup(sup *html.Node) bool {
	class, _ := attr(sup, "class")
	if fields := strings.Fields(class); len(fields) != 1 || fields[0] != "reference" {
		return false
	}
	id, _ := attr(sup, "id")
	return id != ""
}

// CitationID reports whether n is the text of a citation marker and, if so,
// returns the id of the enclosing <sup>. The expected shape is
//
//	<sup id="cite_ref-..." class="reference"><a href="#cite_note-...">[1]</a></sup>
//
// The class must be exactly "reference"; superscripts with other or
// additional classes are ordinary text.
func CitationID(n *html.Node) (string, bool) {
	if n == nil || n.Type != html.TextNode {
		return "", false
	}
	a := n.Parent
	if a == nil || a.Type != html.ElementNode || a.Data != "a" {
		return "", false
	}
	sup := a.Parent
	if sup == nil || sup.Type != html.ElementNode || sup.Data != "sup" {
		return "", false
	}
	if !isMarkerSup(sup) {
		return "", false
	}
	id, _ := attr(sup, "id")
	return id, true
}
