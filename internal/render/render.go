// Package render turns a scan report into Markdown and into the HTML page
// served by the viewer.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/yuin/goldmark"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`#`, `\#`,
	`|`, `\|`,
)

// Markdown writes one paragraph per statement, each followed by its citation
// labels, then a References list with one entry per note in order of first
// use.
func Markdown(w io.Writer, rep *article.Report) error {
	var b strings.Builder
	if rep.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", mdEscaper.Replace(rep.Title))
	}

	var notes []string
	seen := make(map[string]bool)
	for _, st := range rep.Statements {
		b.WriteString(mdEscaper.Replace(st.Text))
		if len(st.Citations) > 0 {
			b.WriteByte(' ')
		}
		for _, c := range st.Citations {
			fmt.Fprintf(&b, `\[%s\]`, mdEscaper.Replace(c.Label()))
			if !seen[c.Number] {
				seen[c.Number] = true
				notes = append(notes, c.RawID)
			}
		}
		b.WriteString("\n\n")
	}

	if rep.References != nil && len(notes) > 0 {
		b.WriteString("## References\n\n")
		for _, rawID := range notes {
			ref, ok := rep.References[rawID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- **%s** %s\n", mdEscaper.Replace(ref.Number), mdEscaper.Replace(ref.Text))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the Markdown export of rep as a standalone page. goldmark
// runs with its default (escaping) renderer, so article text never becomes
// markup.
func HTML(w io.Writer, rep *article.Report) error {
	var md bytes.Buffer
	if err := Markdown(&md, rep); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}

	title := rep.Title
	if title == "" {
		title = "wikirefs"
	}
	return page.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
}
