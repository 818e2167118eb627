package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/download"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/search"

	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	result search.Result
	query  relatoria.SearchQuery
}

func (s *stubSearcher) Search(ctx context.Context, query relatoria.SearchQuery) search.Result {
	s.query = query
	return s.result
}

type stubResolver struct {
	tasks map[string][]relatoria.DownloadTask
	calls []string
}

func (s *stubResolver) Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error) {
	s.calls = append(s.calls, record.Id)
	tasks := s.tasks[record.Id]
	if len(tasks) == 0 {
		return nil, relatoria.ErrResolution
	}
	return tasks, nil
}

type stubDownloader struct {
	failing  map[string]bool
	existing map[string]bool
	urls     []string
}

func (s *stubDownloader) Download(ctx context.Context, task relatoria.DownloadTask) (download.Result, error) {
	s.urls = append(s.urls, task.Url)
	if s.failing[task.Url] {
		return download.Result{}, errors.Join(relatoria.ErrTransport, errors.New("status 500"))
	}
	return download.Result{Existed: s.existing[task.Url], Bytes: 10}, nil
}

func TestOrchestratorRun(t *testing.T) {
	records := []relatoria.DocumentRecord{
		{Id: "a", Year: "2023", CaseNumber: "1", Parties: []string{"ACME"}},
		{Id: "b", Year: "2023", CaseNumber: "2"},
		{Year: "2023", CaseNumber: "dead"},
		{Id: "d", Year: "2023", CaseNumber: "4"},
	}
	searcher := &stubSearcher{result: search.Result{Records: records, Strategy: "index_query"}}
	resolver := &stubResolver{tasks: map[string][]relatoria.DownloadTask{
		"a": {{Url: "u1"}, {Url: "u2"}, {Url: "u3"}},
	}}
	downloader := &stubDownloader{
		failing:  map[string]bool{"u2": true},
		existing: map[string]bool{"u3": true},
	}

	clock := &chrono.FakeImpl{}
	config := relatoria.DefaultConfig()
	rec := telemetry.NewRecorder()
	dir := t.TempDir()

	summary := NewOrchestrator(PassHttp, searcher, resolver, downloader, clock, config, rec).
		Run(context.Background(), "marcas", 3, dir)

	require.Equal(t, relatoria.SearchQuery{Term: "marcas", Size: config.PageSize}, searcher.query)
	require.Equal(t, "index_query", summary.Strategy)
	require.Equal(t, 4, summary.Found)
	require.Equal(t, 3, summary.Processed())
	require.Equal(t, 3, summary.Attempted())
	require.Equal(t, 2, summary.Succeeded())
	require.Equal(t, 2, summary.DeadEnds())

	require.Equal(t, []string{"a", "b"}, resolver.calls)
	require.Equal(t, []string{"u1", "u2", "u3"}, downloader.urls)
	require.Equal(t, 1, summary.Documents[0].Existing)
	require.ErrorIs(t, summary.Documents[1].Err, relatoria.ErrResolution)
	require.ErrorIs(t, summary.Documents[2].Err, relatoria.ErrResolution)

	// 2 between links of the first document, 2 between the 3 documents
	require.Equal(t, 2*config.Pacing.Link()+2*config.Pacing.Document(), clock.Total())

	manifest, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	var written []relatoria.DocumentRecord
	require.NoError(t, json.Unmarshal(manifest, &written))
	require.Len(t, written, 3)
	require.Equal(t, summary.Manifest, filepath.Join(dir, ManifestName))

	counts := rec.Reports("count", report_orchestrator_files)
	require.Len(t, counts, 1)
	require.EqualValues(t, 2, counts[0].Count)
}

func TestOrchestratorNoResults(t *testing.T) {
	searcher := &stubSearcher{result: search.Result{Attempts: []search.Attempt{{Strategy: "direct_api", Err: relatoria.ErrStrategyFailure}}}}
	resolver := &stubResolver{}
	dir := filepath.Join(t.TempDir(), "out")

	summary := NewOrchestrator(PassHttp, searcher, resolver, &stubDownloader{}, &chrono.FakeImpl{}, relatoria.DefaultConfig(), telemetry.NewRecorder()).
		Run(context.Background(), "nada", 0, dir)

	require.Zero(t, summary.Found)
	require.Zero(t, summary.Processed())
	require.ErrorIs(t, summary.SearchErr, relatoria.ErrExhausted)
	require.Empty(t, resolver.calls)
	_, err := os.Stat(filepath.Join(dir, ManifestName))
	require.True(t, os.IsNotExist(err))
}

func TestManifestKeepsUnicode(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteManifest(dir, []relatoria.DocumentRecord{{Id: "x", Parties: []string{"Compañía & Cía <S.A.>"}}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Compañía & Cía <S.A.>")
	require.Contains(t, string(data), "\n  {\n    \"id\": \"x\"")
}
