package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, handler http.HandlerFunc) (*session.Session, string) {
	return newSessionWithTimeout(t, handler, 0)
}

func newSessionWithTimeout(t *testing.T, handler http.HandlerFunc, timeoutMs int) (*session.Session, string) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	config := relatoria.DefaultConfig()
	config.PortalBase = srv.URL
	config.RateLimit = relatoria.RateLimitConfig{}
	if timeoutMs > 0 {
		config.RequestTimeoutMs = timeoutMs
	}
	sess, err := session.New(config, telemetry.NewRecorder(), session.Options{Renderer: &session.FakeRenderer{}})
	require.NoError(t, err)
	return sess, srv.URL
}

func TestDownloadIsIdempotentByDestination(t *testing.T) {
	var fetches atomic.Int32
	sess, base := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doc.pdf" {
			return
		}
		fetches.Add(1)
		if r.Header.Get("Accept") != "*/*" {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		w.Write([]byte("%PDF-1.7 contents"))
	})

	dest := filepath.Join(t.TempDir(), "nested", "2023_2023-00045_Sentencia_Sentencia_escrita_1.pdf")
	task := relatoria.DownloadTask{Url: base + "/doc.pdf", Destination: dest}
	downloader := New(sess, telemetry.NewRecorder())

	first, err := downloader.Download(context.Background(), task)
	require.NoError(t, err)
	require.False(t, first.Existed)
	require.EqualValues(t, len("%PDF-1.7 contents"), first.Bytes)

	second, err := downloader.Download(context.Background(), task)
	require.NoError(t, err)
	require.True(t, second.Existed)

	require.EqualValues(t, 1, fetches.Load())
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7 contents", string(data))
}

func TestDownloadFailureLeavesNothing(t *testing.T) {
	sess, base := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.pdf":
			w.WriteHeader(http.StatusNotFound)
		case "/truncated.pdf":
			// promises more than it sends
			w.Header().Set("Content-Length", strconv.Itoa(1<<20))
			w.Write([]byte("partial"))
		}
	})

	dir := t.TempDir()
	rec := telemetry.NewRecorder()
	downloader := New(sess, rec)

	for _, name := range []string{"missing.pdf", "truncated.pdf"} {
		dest := filepath.Join(dir, name)
		_, err := downloader.Download(context.Background(), relatoria.DownloadTask{Url: base + "/" + name, Destination: dest})
		require.ErrorIs(t, err, relatoria.ErrTransport, name)

		_, err = os.Stat(dest)
		require.True(t, os.IsNotExist(err), name)
		_, err = os.Stat(dest + ".part")
		require.True(t, os.IsNotExist(err), name)
	}
	require.Len(t, rec.Reports("broken", report_downloader_download), 2)
}

func TestDownloadOutlivesRequestTimeout(t *testing.T) {
	sess, base := newSessionWithTimeout(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audiencia.pdf" {
			return
		}
		flusher := w.(http.Flusher)
		for i := 0; i < 6; i++ {
			w.Write([]byte(strings.Repeat("x", 1024)))
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}, 300)

	dest := filepath.Join(t.TempDir(), "a.pdf")
	result, err := New(sess, telemetry.NewRecorder()).Download(context.Background(), relatoria.DownloadTask{
		Url:         base + "/audiencia.pdf",
		Destination: dest,
	})
	require.NoError(t, err)
	require.EqualValues(t, 6*1024, result.Bytes)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.EqualValues(t, 6*1024, info.Size())
}
