// Package relatoria holds the canonical types shared by every stage of a run:
// what is searched for, what a ruling looks like once normalized, and what
// ends up being downloaded.
package relatoria

// SearchQuery is immutable once issued.
type SearchQuery struct {
	Term   string
	Size   int
	Offset int
}

type FileKind int

const (
	ObjectStoragePath FileKind = iota
	DirectUrl
)

func (k FileKind) String() string {
	switch k {
	case ObjectStoragePath:
		return "object_storage_path"
	case DirectUrl:
		return "direct_url"
	}
	return "unknown"
}

func (k FileKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FileDescriptor is a candidate artifact attached to a record before it is resolved.
type FileDescriptor struct {
	Kind      FileKind `json:"kind"`
	TypeLabel string   `json:"type_label"`
	// Locator is an object storage path or a ready URL depending on Kind.
	Locator string `json:"locator"`
}

// DocumentRecord is a single ruling, independent of the strategy that found it.
type DocumentRecord struct {
	Id          string           `json:"id"`
	Year        string           `json:"year"`
	CaseNumber  string           `json:"case_number"`
	RulingType  string           `json:"ruling_type"`
	Date        string           `json:"date"`
	Title       string           `json:"title,omitempty"`
	Link        string           `json:"link,omitempty"`
	Parties     []string         `json:"parties"`
	Categories  []string         `json:"categories"`
	Descriptors []string         `json:"descriptors"`
	Summary     string           `json:"summary"`
	Files       []FileDescriptor `json:"files"`
}

// DeadEnd is true when nothing about the record can lead to a download.
func (r DocumentRecord) DeadEnd() bool {
	return len(r.Files) == 0 && r.Id == "" && r.Link == ""
}

// DownloadTask is terminal once the file exists at Destination or its download
// failed, it is never retried.
type DownloadTask struct {
	Url         string
	Destination string
	// Source names the resolver that produced the task.
	Source string
}
