package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"sicrelatoria/internal/relatoria"
)

const ManifestName = "resultados.json"

// WriteManifest writes the records as indented UTF-8 JSON into `dir`.
func WriteManifest(dir string, records []relatoria.DocumentRecord) (string, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err = enc.Encode(records)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ManifestName)
	err = os.WriteFile(path, buf.Bytes(), 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}
