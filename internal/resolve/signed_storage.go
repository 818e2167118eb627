package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const report_signed_storage_sign = "signed_storage.sign"

// SignedStorage exchanges object storage paths for signed urls, descriptors
// that already carry a url are passed through.
type SignedStorage struct {
	session Session
	tel     telemetry.API
	signer  string
	cache   *expirable.LRU[string, string]
}

func NewSignedStorage(sess Session, tel telemetry.API, config relatoria.Config) SignedStorage {
	assert.NotNil(sess)
	assert.NotNil(tel)

	size := config.SignedUrlCache.Size
	if size <= 0 {
		size = 256
	}
	return SignedStorage{
		session: sess,
		tel:     telemetry.NewScopedAPI("resolve", tel),
		signer:  strings.TrimSuffix(config.SignerBase, "/"),
		cache:   expirable.NewLRU[string, string](size, nil, config.SignedUrlCache.Ttl()),
	}
}

func (SignedStorage) Name() string {
	return "signed_storage"
}

// escapeStoragePath escapes every segment of the path but keeps its slashes.
func escapeStoragePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Sign returns the signed url for an object storage path.
func (r SignedStorage) Sign(ctx context.Context, path string) (string, error) {
	if signed, ok := r.cache.Get(path); ok {
		return signed, nil
	}

	res, err := r.session.IssueRequest(ctx, session.Request{
		Method: http.MethodGet,
		Url:    fmt.Sprintf("%s/get-signed-url/%s", r.signer, escapeStoragePath(path)),
	})
	if err != nil {
		return "", err
	}

	var body struct {
		Url string `json:"url"`
	}
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		return "", fmt.Errorf("%w: decode signed url: %w", relatoria.ErrTransport, err)
	}
	if body.Url == "" {
		return "", fmt.Errorf("%w: signer returned no url for %s", relatoria.ErrTransport, path)
	}

	r.cache.Add(path, body.Url)
	return body.Url, nil
}

// typeLabels numbers the labels that appear more than once among the
// descriptors that have a locator, so their files do not share a destination.
func typeLabels(files []relatoria.FileDescriptor) []string {
	counts := map[string]int{}
	for _, f := range files {
		if f.Locator != "" {
			counts[f.TypeLabel]++
		}
	}
	seen := map[string]int{}
	labels := make([]string, len(files))
	for i, f := range files {
		labels[i] = f.TypeLabel
		if f.Locator == "" || counts[f.TypeLabel] < 2 {
			continue
		}
		seen[f.TypeLabel]++
		labels[i] = fmt.Sprintf("%s_%d", f.TypeLabel, seen[f.TypeLabel])
	}
	return labels
}

func (r SignedStorage) Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error) {
	tasks := []relatoria.DownloadTask{}
	var errs []error

	labels := typeLabels(record.Files)
	for i, file := range record.Files {
		switch file.Kind {
		case relatoria.ObjectStoragePath:
			if file.Locator == "" {
				continue
			}
			signed, err := r.Sign(ctx, file.Locator)
			if err != nil {
				r.tel.ReportBroken(report_signed_storage_sign, file.Locator, err)
				errs = append(errs, err)
				continue
			}
			tasks = append(tasks, relatoria.DownloadTask{
				Url:         signed,
				Destination: relatoria.StoragePath(dir, record, labels[i], relatoria.StorageExtension(file.Locator)),
				Source:      r.Name(),
			})
		case relatoria.DirectUrl:
			if file.Locator == "" {
				continue
			}
			tasks = append(tasks, relatoria.DownloadTask{
				Url:         file.Locator,
				Destination: relatoria.StoragePath(dir, record, labels[i], relatoria.LinkExtension(file.Locator)),
				Source:      r.Name(),
			})
		}
	}
	return tasks, errors.Join(errs...)
}
