package pipeline

import (
	"context"
	"fmt"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/download"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_orchestrator_search   = "orchestrator.search"
	report_orchestrator_manifest = "orchestrator.manifest"
	report_orchestrator_document = "orchestrator.document"
	report_orchestrator_download = "orchestrator.download"
	report_orchestrator_files    = "orchestrator.files"
)

var meter = otel.Meter("sicrelatoria/pipeline")

type Searcher interface {
	Search(ctx context.Context, query relatoria.SearchQuery) search.Result
}

type Resolver interface {
	Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error)
}

type Downloader interface {
	Download(ctx context.Context, task relatoria.DownloadTask) (download.Result, error)
}

// Orchestrator drives one pass: search, then resolve and download every record.
type Orchestrator struct {
	name       string
	searcher   Searcher
	resolver   Resolver
	downloader Downloader
	clock      chrono.API
	pace       relatoria.PacingConfig
	pageSize   int
	tel        telemetry.API

	documents metric.Int64Counter
	downloads metric.Int64Counter
}

func NewOrchestrator(
	name string,
	searcher Searcher,
	resolver Resolver,
	downloader Downloader,
	clock chrono.API,
	config relatoria.Config,
	tel telemetry.API,
) Orchestrator {
	assert.NotNil(searcher)
	assert.NotNil(resolver)
	assert.NotNil(downloader)
	assert.NotNil(clock)
	assert.NotNil(tel)

	documents, _ := meter.Int64Counter("relatoria.documents")
	downloads, _ := meter.Int64Counter("relatoria.downloads")

	return Orchestrator{
		name:       name,
		searcher:   searcher,
		resolver:   resolver,
		downloader: downloader,
		clock:      clock,
		pace:       config.Pacing,
		pageSize:   config.PageSize,
		tel:        telemetry.NewScopedAPI("pipeline", tel),
		documents:  documents,
		downloads:  downloads,
	}
}

// Run never fails, everything that went wrong is in the summary.
func (o Orchestrator) Run(ctx context.Context, term string, maxDocuments int, dir string) Summary {
	summary := Summary{Pass: o.name, Term: term, Dir: dir}

	result := o.searcher.Search(ctx, relatoria.SearchQuery{Term: term, Size: o.pageSize})
	summary.Strategy = result.Strategy
	summary.Found = len(result.Records)
	if len(result.Records) == 0 {
		summary.SearchErr = result.Err()
		o.tel.ReportWarning(report_orchestrator_search, term, "no results")
		return summary
	}

	records := result.Records
	if maxDocuments > 0 && len(records) > maxDocuments {
		records = records[:maxDocuments]
	}

	manifest, err := WriteManifest(dir, records)
	if err != nil {
		o.tel.ReportBroken(report_orchestrator_manifest, err)
	} else {
		summary.Manifest = manifest
	}

	for i, record := range records {
		if i > 0 {
			if err := o.clock.Sleep(ctx, o.pace.Document()); err != nil {
				break
			}
		}
		o.tel.ReportDebug(
			fmt.Sprintf("[%d/%d] %s", i+1, len(records), relatoria.BaseName(record)),
			"id", record.Id,
			"parties", orNone(record.Parties),
			"descriptors", orNone(record.Descriptors),
		)
		summary.Documents = append(summary.Documents, o.processDocument(ctx, record, dir))
	}

	o.tel.ReportCount(report_orchestrator_files, int64(summary.Succeeded()))
	return summary
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "N/A"
	}
	return strings.Join(values, ", ")
}

func (o Orchestrator) processDocument(ctx context.Context, record relatoria.DocumentRecord, dir string) DocumentSummary {
	doc := DocumentSummary{Record: record}
	defer func() {
		status := "downloaded"
		if doc.Succeeded == 0 {
			status = "empty"
		}
		o.documents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pass", o.name),
			attribute.String("status", status),
		))
	}()

	if record.DeadEnd() {
		doc.Err = fmt.Errorf("%w: record has neither files nor an id", relatoria.ErrResolution)
		o.tel.ReportWarning(report_orchestrator_document, relatoria.BaseName(record), doc.Err)
		return doc
	}

	tasks, err := o.resolver.Resolve(ctx, record, dir)
	doc.Resolved = len(tasks)
	if err != nil {
		doc.Err = err
		o.tel.ReportWarning(report_orchestrator_document, record.Id, err)
		return doc
	}

	for i, task := range tasks {
		if i > 0 {
			if err := o.clock.Sleep(ctx, o.pace.Link()); err != nil {
				break
			}
		}

		doc.Attempted++
		result, err := o.downloader.Download(ctx, task)
		status := "downloaded"
		switch {
		case err != nil:
			status = "failed"
			o.tel.ReportWarning(report_orchestrator_download, task.Url, err)
		case result.Existed:
			status = "existing"
			doc.Succeeded++
			doc.Existing++
		default:
			doc.Succeeded++
			o.tel.ReportDebug("downloaded", task.Destination, result.Bytes)
		}
		o.downloads.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pass", o.name),
			attribute.String("source", task.Source),
			attribute.String("status", status),
		))
	}
	return doc
}
