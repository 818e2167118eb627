package relatoria

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"sicrelatoria/lib/textutil"
)

// BaseName is the deterministic prefix of every file downloaded for a record.
func BaseName(record DocumentRecord) string {
	return fmt.Sprintf(
		"%s_%s_%s",
		textutil.SafeFilenamePart(record.Year),
		textutil.SafeFilenamePart(record.CaseNumber),
		textutil.SafeFilenamePart(record.RulingType),
	)
}

func StoragePath(dir string, record DocumentRecord, typeLabel, ext string) string {
	return filepath.Join(dir, fmt.Sprintf(
		"%s_%s.%s",
		BaseName(record),
		textutil.SafeFilenamePart(typeLabel),
		ext,
	))
}

// ViewerPath names the `index`-th (1 based) file found under a viewer label.
func ViewerPath(dir string, record DocumentRecord, label string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf(
		"%s_%s_%d.%s",
		BaseName(record),
		textutil.SafeFilenamePart(label),
		index,
		ext,
	))
}

func BrowserPath(dir string, record DocumentRecord, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_browser_%d.%s", BaseName(record), index, ext))
}

func urlPath(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return strings.ToLower(link)
	}
	return strings.ToLower(parsed.Path)
}

// StorageExtension infers the extension of an object storage path.
func StorageExtension(path string) string {
	path = strings.ToLower(path)
	switch {
	case strings.HasSuffix(path, ".docx"):
		return "docx"
	case strings.HasSuffix(path, ".doc"):
		return "doc"
	}
	return "pdf"
}

// LinkExtension infers the extension of a resolved link, ignoring its query.
func LinkExtension(link string) string {
	path := urlPath(link)
	for _, ext := range []string{"docx", "doc", "xlsx", "xls"} {
		if strings.HasSuffix(path, "."+ext) {
			return ext
		}
	}
	return "pdf"
}
