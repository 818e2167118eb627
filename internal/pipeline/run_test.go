package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/stretchr/testify/require"
)

type portal struct {
	mu       sync.Mutex
	requests []string
	handlers map[string]http.HandlerFunc
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	p.mu.Lock()
	p.requests = append(p.requests, key)
	p.mu.Unlock()

	handler, ok := p.handlers[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler(w, r)
}

func (p *portal) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.requests {
		if r == key {
			n++
		}
	}
	return n
}

func newPortal(t *testing.T, handlers map[string]http.HandlerFunc) (*portal, relatoria.Config) {
	p := &portal{handlers: handlers}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	config := relatoria.DefaultConfig()
	config.PortalBase = srv.URL
	config.GestorBase = srv.URL + "/gestor"
	config.SignerBase = srv.URL + "/signer"
	config.RateLimit = relatoria.RateLimitConfig{}
	return p, config
}

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

const indexHit = `{"hits": {"hits": [{
	"_id": "abc123",
	"_source": {"informacion": {"numero_expediente": "2023-00045", "ano_expediente": "2023"}}
}]}}`

func TestExecuteEndToEnd(t *testing.T) {
	var indexBody string
	p, config := newPortal(t, map[string]http.HandlerFunc{
		"GET /": ok("<html></html>"),
		"POST /sic-relatoria-idx/_search": func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			indexBody = string(body)
			w.Write([]byte(indexHit))
		},
		"GET /gestor/visor-relatorias/abc123/archivos-providencia/Sentencia_escrita": ok(`<html><body><a href="doc.pdf">Sentencia</a></body></html>`),
		"GET /gestor/visor-relatorias/abc123/archivos-providencia/doc.pdf":          ok("%PDF-1.7"),
	})

	dir := filepath.Join(t.TempDir(), "documentos_sic")
	renderer := &session.FakeRenderer{}
	summaries, err := Execute(context.Background(), config, telemetry.NewRecorder(), Options{
		Term:     "tutela derechos fundamentales",
		Dir:      dir,
		Clock:    &chrono.FakeImpl{},
		Renderer: renderer,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NoError(t, Failed(summaries))

	summary := summaries[0]
	require.Equal(t, PassHttp, summary.Pass)
	require.Equal(t, "index_query", summary.Strategy)
	require.Equal(t, 1, summary.Processed())
	require.Equal(t, 1, summary.Succeeded())

	record := summary.Documents[0].Record
	require.Equal(t, "abc123", record.Id)
	require.Equal(t, "2023", record.Year)
	require.Equal(t, "2023-00045", record.CaseNumber)

	require.Contains(t, indexBody, `"query":"tutela derechos fundamentales"`)
	require.Equal(t, 1, p.count("POST /api/v1/busqueda"))
	require.Equal(t, 1, p.count("GET /gestor/visor-relatorias/abc123/archivos-providencia/doc.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, "2023_2023-00045__Sentencia_escrita_1.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(data))
	_, err = os.Stat(filepath.Join(dir, ManifestName))
	require.NoError(t, err)

	require.Empty(t, renderer.Visited)
	require.True(t, renderer.Closed)

	// a second run finds the file on disk and does not fetch it again
	summaries, err = Execute(context.Background(), config, telemetry.NewRecorder(), Options{
		Term:     "tutela derechos fundamentales",
		Dir:      dir,
		Clock:    &chrono.FakeImpl{},
		Renderer: &session.FakeRenderer{},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summaries[0].Documents[0].Existing)
	require.Equal(t, 1, p.count("GET /gestor/visor-relatorias/abc123/archivos-providencia/doc.pdf"))
}

func TestExecuteEmptyTerm(t *testing.T) {
	p, config := newPortal(t, map[string]http.HandlerFunc{"GET /": ok("")})

	renderer := &session.FakeRenderer{}
	summaries, err := Execute(context.Background(), config, telemetry.NewRecorder(), Options{
		Term:     "",
		Dir:      t.TempDir(),
		Clock:    &chrono.FakeImpl{},
		Renderer: renderer,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Zero(t, summaries[0].Found)
	require.ErrorIs(t, Failed(summaries), relatoria.ErrExhausted)
	require.ErrorIs(t, summaries[0].SearchErr, relatoria.ErrStrategyFailure)
	require.Empty(t, p.requests)
	require.Empty(t, renderer.Visited)
	require.True(t, renderer.Closed)
}

func TestExecuteEscalatesToBrowser(t *testing.T) {
	p, config := newPortal(t, map[string]http.HandlerFunc{
		"GET /":                 ok("<html></html>"),
		"POST /api/v1/busqueda": ok(`{"resultados": [{"id": "xyz", "expediente": "21-9", "ano": "2021"}]}`),
		"GET /files/xyz.pdf":    ok("%PDF-1.4"),
	})

	// the rendered result links a viewer the http pass never derives from the id alone
	viewer := config.GestorBase + "/visor-relatorias/xyz/archivos-providencia/Resolucion"
	renderer := &session.FakeRenderer{Pages: map[string]session.FakePage{
		config.PortalBase + "/": {
			Html: `<html><input class="input_invisible"></html>`,
			Submitted: map[string]string{"marcas": `<div class="resultado-container"><div class="resultado-item">
				<span class="titulo">Sentencia</span><span class="expediente">21-9</span>
				<a class="view-document" href="` + viewer + `">ver</a>
			</div></div>`},
		},
		viewer: {Html: `<html><a href="` + config.PortalBase + `/files/xyz.pdf">Descargar</a></html>`},
	}}

	dir := t.TempDir()
	rec := telemetry.NewRecorder()
	summaries, err := Execute(context.Background(), config, rec, Options{
		Term:     "marcas",
		Dir:      dir,
		Clock:    &chrono.FakeImpl{},
		Renderer: renderer,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	require.Equal(t, "direct_api", summaries[0].Strategy)
	require.Zero(t, summaries[0].Succeeded())

	require.Equal(t, PassBrowser, summaries[1].Pass)
	require.Equal(t, "browser_render", summaries[1].Strategy)
	require.Equal(t, 1, summaries[1].Succeeded())
	require.Len(t, rec.Reports("warning", report_run_escalate), 1)

	data, err := os.ReadFile(filepath.Join(dir, "_21-9__browser_1.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(data))
	require.Equal(t, 1, p.count("GET /files/xyz.pdf"))
	require.Contains(t, renderer.Visited, config.GestorBase+"/visor-relatorias/xyz/archivos-providencia/Sentencia_escrita")
	require.True(t, renderer.Closed)
}

func TestExecuteBrowserOnly(t *testing.T) {
	p, config := newPortal(t, nil)
	renderer := &session.FakeRenderer{Pages: map[string]session.FakePage{
		config.PortalBase + "/": {Html: `<html><input class="input_invisible"></html>`},
	}}

	summaries, err := Execute(context.Background(), config, telemetry.NewRecorder(), Options{
		Term:        "marcas",
		Dir:         t.TempDir(),
		BrowserOnly: true,
		Clock:       &chrono.FakeImpl{},
		Renderer:    renderer,
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, PassBrowser, summaries[0].Pass)
	require.Zero(t, summaries[0].Found)
	require.Empty(t, p.requests)
	require.Equal(t, []string{config.PortalBase + "/"}, renderer.Visited)
	require.Equal(t, []string{"marcas"}, renderer.Typed)
}
