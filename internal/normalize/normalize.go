package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
)

const (
	report_normalizer_item     = "normalizer.item"
	report_normalizer_envelope = "normalizer.envelope"
)

// Source tags a raw response with the shape it was produced in.
type Source int

const (
	SourceDirectApi Source = iota
	SourceIndexQuery
	SourceEmbeddedState
	SourceBrowserRender
)

func (s Source) String() string {
	switch s {
	case SourceDirectApi:
		return "direct_api"
	case SourceIndexQuery:
		return "index_query"
	case SourceEmbeddedState:
		return "embedded_state"
	case SourceBrowserRender:
		return "browser_render"
	}
	return "unknown"
}

// RawResponse is the undecoded payload a search strategy obtained.
type RawResponse struct {
	Source Source
	Body   []byte
}

// flatKeys are the keys a list of flat results has been seen under, in the
// order they are looked for.
var flatKeys = []string{"resultados", "results", "documentos", "items", "data"}

type Normalizer struct {
	tel telemetry.API
}

func New(tel telemetry.API) Normalizer {
	assert.NotNil(tel)
	return Normalizer{tel: telemetry.NewScopedAPI("normalize", tel)}
}

// Normalize maps a raw response into records. Items that fail to parse are
// reported and skipped, an error is only returned when the response as a
// whole has no recognizable shape.
func (n Normalizer) Normalize(raw RawResponse) ([]relatoria.DocumentRecord, error) {
	var (
		records []relatoria.DocumentRecord
		err     error
	)
	switch raw.Source {
	case SourceDirectApi, SourceBrowserRender:
		records, err = n.flat(raw.Body)
	case SourceIndexQuery:
		records, err = n.hits(raw.Body)
	case SourceEmbeddedState:
		records, err = n.embedded(raw.Body)
	default:
		err = fmt.Errorf("unknown source %d", raw.Source)
	}
	if err != nil {
		n.tel.ReportWarning(report_normalizer_envelope, raw.Source.String(), err)
		return nil, fmt.Errorf("%w: %s: %w", relatoria.ErrStrategyFailure, raw.Source, err)
	}
	return records, nil
}

func (n Normalizer) flat(body []byte) ([]relatoria.DocumentRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		return n.flatItems(body)
	}

	var envelope map[string]json.RawMessage
	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, err
	}
	for _, key := range flatKeys {
		list, ok := envelope[key]
		if ok {
			return n.flatItems(list)
		}
	}
	return nil, fmt.Errorf("no result list in response")
}

func (n Normalizer) flatItems(list []byte) ([]relatoria.DocumentRecord, error) {
	var items []json.RawMessage
	err := json.Unmarshal(list, &items)
	if err != nil {
		return nil, err
	}

	records := make([]relatoria.DocumentRecord, 0, len(items))
	for i, raw := range items {
		var it item
		err := json.Unmarshal(raw, &it)
		if err != nil {
			n.tel.ReportWarning(report_normalizer_item, i, fmt.Errorf("%w: %w", relatoria.ErrItemParse, err))
			continue
		}
		records = append(records, it.record(""))
	}
	return records, nil
}

func (n Normalizer) hits(body []byte) ([]relatoria.DocumentRecord, error) {
	var envelope struct {
		Hits *struct {
			Hits []json.RawMessage `json:"hits"`
		} `json:"hits"`
	}
	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Hits == nil {
		return nil, fmt.Errorf("no hits in response")
	}

	records := make([]relatoria.DocumentRecord, 0, len(envelope.Hits.Hits))
	for i, raw := range envelope.Hits.Hits {
		var h hit
		err := json.Unmarshal(raw, &h)
		if err != nil {
			n.tel.ReportWarning(report_normalizer_item, i, fmt.Errorf("%w: %w", relatoria.ErrItemParse, err))
			continue
		}
		records = append(records, h.Source.record(string(h.Id)))
	}
	return records, nil
}

// embedded looks through arbitrary state for the first thing that looks like
// a hit envelope or a list of flat results.
func (n Normalizer) embedded(body []byte) ([]relatoria.DocumentRecord, error) {
	var state any
	err := json.Unmarshal(body, &state)
	if err != nil {
		return nil, err
	}

	found, ok := findResults(state)
	if !ok {
		return nil, fmt.Errorf("no results in embedded state")
	}
	data, err := json.Marshal(found.value)
	if err != nil {
		return nil, err
	}
	if found.hits {
		return n.hits(data)
	}
	return n.flatItems(data)
}

type located struct {
	value any
	hits  bool
}

func findResults(node any) (located, bool) {
	switch v := node.(type) {
	case map[string]any:
		if inner, ok := v["hits"].(map[string]any); ok {
			if _, ok := inner["hits"].([]any); ok {
				return located{value: v, hits: true}, true
			}
		}
		for _, key := range flatKeys {
			if list, ok := v[key].([]any); ok && isObjectList(list) {
				return located{value: list}, true
			}
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found, ok := findResults(v[k]); ok {
				return found, true
			}
		}
	case []any:
		for _, child := range v {
			if found, ok := findResults(child); ok {
				return found, true
			}
		}
	}
	return located{}, false
}

func isObjectList(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, el := range list {
		if _, ok := el.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func (it item) record(id string) relatoria.DocumentRecord {
	info := information{}
	if it.Informacion != nil {
		info = *it.Informacion
	}
	thes := thesaurus{}
	if it.Tesauro != nil {
		thes = *it.Tesauro
	}
	summary := it.Resumen
	if it.DocumentoResumen != nil && it.DocumentoResumen.Transcripcion != "" {
		summary = it.DocumentoResumen.Transcripcion
	}

	record := relatoria.DocumentRecord{
		Id:          first(text(id), it.Id, it.UnderId, it.IdDocumento),
		Year:        first(info.AnoExpediente, it.Año, it.Ano, it.Anio, it.AnoExpediente, it.Year),
		CaseNumber:  first(info.NumeroExpediente, it.NumeroExpediente, it.Expediente, it.Numero, it.Radicado),
		RulingType:  first(info.TipoProvidencia, it.TipoProvidencia),
		Date:        first(info.FechaProvidencia, it.FechaProvidencia, it.Fecha),
		Title:       string(it.Titulo),
		Link:        first(it.Enlace, it.Url),
		Parties:     nonNil(it.Partes),
		Categories:  nonNil(firstList(thes.Categoria, it.Categorias)),
		Descriptors: nonNil(firstList(thes.Descriptor, it.Descriptores)),
		Summary:     string(summary),
		Files:       []relatoria.FileDescriptor{},
	}

	for _, f := range it.Archivos {
		label := first(f.TipoArchivo, f.Tipo)
		if path := first(f.PathS3, f.Path); path != "" {
			record.Files = append(record.Files, relatoria.FileDescriptor{
				Kind:      relatoria.ObjectStoragePath,
				TypeLabel: label,
				Locator:   path,
			})
			continue
		}
		if link := first(f.Url, f.Enlace); link != "" {
			record.Files = append(record.Files, relatoria.FileDescriptor{
				Kind:      relatoria.DirectUrl,
				TypeLabel: label,
				Locator:   link,
			})
		}
	}
	return record
}

func firstList(values ...nameList) nameList {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func nonNil(values nameList) []string {
	if values == nil {
		return []string{}
	}
	return []string(values)
}
