package render

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/citation"
)

func sampleReport() *article.Report {
	c1 := citation.MustParse("cite_ref-:2_1-0")
	c2 := citation.MustParse("cite_ref-:0_2-0")
	c2b := citation.MustParse("cite_ref-:0_2-1")
	return &article.Report{
		Title: "Sandbox_sample",
		Statements: []article.Statement{
			{Text: "This is the *first* statement.", Citations: []citation.Citation{c1, c2}},
			{Text: "And this is the second.", Citations: []citation.Citation{c2b}},
			{Text: "Uncited.", Citations: []citation.Citation{}},
		},
		References: map[string]article.Reference{
			c1.RawID:  {Citation: c1, Text: "First reference."},
			c2.RawID:  {Citation: c2, Text: "Second <reference>."},
			c2b.RawID: {Citation: c2b, Text: "Second <reference>."},
		},
	}
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "# Sandbox\\_sample\n\n" +
		"This is the \\*first\\* statement. \\[1a\\]\\[2a\\]\n\n" +
		"And this is the second. \\[2b\\]\n\n" +
		"Uncited.\n\n" +
		"## References\n\n" +
		"- **1** First reference.\n" +
		"- **2** Second \\<reference\\>.\n"
	if got := buf.String(); got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestMarkdown_WithoutReferences(t *testing.T) {
	rep := sampleReport()
	rep.References = nil
	var buf bytes.Buffer
	if err := Markdown(&buf, rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "## References") {
		t.Errorf("expected no references section, got:\n%s", buf.String())
	}
}

func TestMarkdown_UnsuffixedLabel(t *testing.T) {
	rep := &article.Report{Statements: []article.Statement{
		{Text: "Plain.", Citations: []citation.Citation{citation.MustParse("cite_ref-5")}},
	}}
	var buf bytes.Buffer
	if err := Markdown(&buf, rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "Plain. \\[5\\]\n\n" {
		t.Errorf("expected unsuffixed label, got %q", got)
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := HTML(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Sandbox_sample</title>",
		"<h1>Sandbox_sample</h1>",
		"This is the *first* statement. [1a][2a]",
		"<h2>References</h2>",
		"<strong>2</strong> Second &lt;reference&gt;.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<reference>") {
		t.Error("expected reference text to be escaped")
	}
}

func TestHTML_FromSampleArticle(t *testing.T) {
	f, err := os.Open("../article/testdata/sample-1.html")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	a, err := article.FromHTML(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rep, err := a.Report(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if err := HTML(&buf, rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"And the third. [3b]", "Second Reference, issued August 7, 1934."} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}
