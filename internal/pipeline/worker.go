package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/metrics"
	"github.com/dgallion1/wikirefs/internal/wiki"
)

// Worker processes a single batch job.
type Worker struct {
	fetcher wiki.Fetcher
	log     *slog.Logger
}

func NewWorker(fetcher wiki.Fetcher, log *slog.Logger) *Worker {
	return &Worker{
		fetcher: fetcher,
		log:     log,
	}
}

// Process fetches and scans every title of the job in order. A failure on
// one title is recorded in its result and does not stop the others.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	failed := 0
	for i, title := range job.Titles {
		if ctx.Err() != nil {
			job.AddError("cancelled: " + ctx.Err().Error())
			failed += len(job.Titles) - i
			break
		}
		res := w.processTitle(ctx, job, title)
		if res.Error != "" {
			log.Warn("title failed", "title", title, "error", res.Error)
			failed++
		}
		job.AddResult(res)
	}

	status := StatusCompleted
	switch {
	case failed == len(job.Titles):
		status = StatusFailed
	case failed > 0:
		status = StatusPartial
	}
	job.SetStatus(status, "done")
	metrics.JobsFinished.WithLabelValues(string(status)).Inc()

	snap := job.Snapshot()
	log.Info("job finished",
		"status", status,
		"titles", snap.Progress.TotalTitles,
		"statements", snap.Progress.Statements,
		"citations", snap.Progress.Citations,
	)
}

func (w *Worker) processTitle(ctx context.Context, job *Job, title string) TitleResult {
	res := TitleResult{Title: title}

	job.SetStatus(StatusFetching, title)
	page, err := w.fetcher.FetchParsed(ctx, title)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Title = page.Title
	res.RevID = page.RevID
	res.Permalink = page.Permalink
	res.ContentHash = ContentHashHex([]byte(page.HTML))

	job.SetStatus(StatusScanning, page.Title)
	a, err := article.FromString(page.HTML)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	rep, err := Scan(a, SourceBatch, job.WithReferences)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if rep.Title == "" {
		rep.Title = page.Title
	}
	res.Report = rep
	return res
}
