package api

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgallion1/wikirefs/internal/render"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>wikirefs</title>
</head>
<body>
<form action="/show" method="get">
<label for="page_title">Page title</label>
<input id="page_title" name="page_title" value="{{.}}" required>
<button type="submit">Show</button>
</form>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexPage.Execute(w, r.URL.Query().Get("page_title"))
}

// handleShow renders the statements of a wiki article, with their
// references, as a browser page.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("page_title"))
	if title == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	_, rep, err := s.scanTitle(r, title, true)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusBadGateway {
			s.log.Error("show failed", "title", title, "error", err)
		}
		http.Error(w, err.Error(), code)
		return
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, rep); err != nil {
		s.log.Error("render failed", "title", title, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
