package pipeline

import (
	"time"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/metrics"
)

// Scan sources, used as a metrics label.
const (
	SourceUpload = "upload"
	SourceWiki   = "wiki"
	SourceBatch  = "batch"
)

// Scan builds the report for a and records scan metrics under source.
func Scan(a *article.Article, source string, withReferences bool) (*article.Report, error) {
	start := time.Now()
	rep, err := a.Report(withReferences)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScansTotal.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	metrics.ScansTotal.WithLabelValues(source, "ok").Inc()
	metrics.ObserveReport(len(rep.Statements), rep.CitationCount(), len(rep.References))
	return rep, nil
}
