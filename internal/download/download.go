package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/go-resty/resty/v2"
)

const (
	report_downloader_download = "downloader.download"
	report_downloader_cleanup  = "downloader.cleanup"
)

const chunkSize = 8192

// Session is the part of session.Session the downloader depends on.
type Session interface {
	IssueRequest(ctx context.Context, r session.Request) (*resty.Response, error)
}

type Result struct {
	// Existed is set when the destination was already on disk and nothing was fetched.
	Existed bool
	Bytes   int64
}

// Downloader streams urls to disk, a destination that exists is never fetched
// again.
type Downloader struct {
	session Session
	tel     telemetry.API
}

func New(sess Session, tel telemetry.API) Downloader {
	assert.NotNil(sess)
	assert.NotNil(tel)
	return Downloader{
		session: sess,
		tel:     telemetry.NewScopedAPI("download", tel),
	}
}

// Download streams the task's url into its destination through a temporary
// file that is renamed on success and removed on failure.
func (d Downloader) Download(ctx context.Context, task relatoria.DownloadTask) (Result, error) {
	_, err := os.Stat(task.Destination)
	if err == nil {
		d.tel.ReportDebug("file already exists", task.Destination)
		return Result{Existed: true}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: stat %s: %w", relatoria.ErrTransport, task.Destination, err)
	}

	written, err := d.fetch(ctx, task)
	if err != nil {
		d.tel.ReportBroken(report_downloader_download, task.Url, err)
		return Result{}, err
	}
	return Result{Bytes: written}, nil
}

func (d Downloader) fetch(ctx context.Context, task relatoria.DownloadTask) (int64, error) {
	err := os.MkdirAll(filepath.Dir(task.Destination), 0777)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", relatoria.ErrTransport, err)
	}

	res, err := d.session.IssueRequest(ctx, session.Request{
		Method:  http.MethodGet,
		Url:     task.Url,
		Headers: map[string]string{"Accept": "*/*"},
		Stream:  true,
	})
	if err != nil {
		return 0, err
	}
	body := res.RawBody()
	defer body.Close()

	partial := task.Destination + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", relatoria.ErrTransport, err)
	}

	written, err := io.CopyBuffer(file, body, make([]byte, chunkSize))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(partial, task.Destination)
	}
	if err != nil {
		removeErr := os.Remove(partial)
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			d.tel.ReportWarning(report_downloader_cleanup, partial, removeErr)
		}
		return 0, fmt.Errorf("%w: write %s: %w", relatoria.ErrTransport, task.Destination, err)
	}
	return written, nil
}
