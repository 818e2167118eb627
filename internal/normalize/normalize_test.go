package normalize

import (
	"testing"

	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const indexFixture = `{
	"took": 3,
	"hits": {
		"total": {"value": 1},
		"hits": [{
			"_id": "abc123",
			"_source": {
				"informacion": {
					"ano_expediente": "2023",
					"numero_expediente": "2023-00045",
					"tipo_providencia": "Sentencia",
					"fecha_providencia": "2023-05-04"
				},
				"partes": [{"nombre": "ACME S.A.S", "numero_doc": "900"}, {"nombre": "Juan Perez"}],
				"archivos": [{"tipo_archivo": "Sentencia escrita", "path_s3": "relatoria/2023/abc123.docx"}],
				"tesauro": {
					"categoria": [{"nombre": "Proteccion al consumidor"}],
					"descriptor": [{"nombre": "Garantia"}, {"nombre": "Tutela"}]
				},
				"documento_resumen": {"transcripcion": "resumen del fallo"}
			}
		}]
	}
}`

func TestNormalizeShapes(t *testing.T) {
	cases := []struct {
		name     string
		raw      RawResponse
		expected relatoria.DocumentRecord
	}{
		{
			name: "index query hits",
			raw:  RawResponse{Source: SourceIndexQuery, Body: []byte(indexFixture)},
			expected: relatoria.DocumentRecord{
				Id:          "abc123",
				Year:        "2023",
				CaseNumber:  "2023-00045",
				RulingType:  "Sentencia",
				Date:        "2023-05-04",
				Parties:     []string{"ACME S.A.S", "Juan Perez"},
				Categories:  []string{"Proteccion al consumidor"},
				Descriptors: []string{"Garantia", "Tutela"},
				Summary:     "resumen del fallo",
				Files: []relatoria.FileDescriptor{{
					Kind:      relatoria.ObjectStoragePath,
					TypeLabel: "Sentencia escrita",
					Locator:   "relatoria/2023/abc123.docx",
				}},
			},
		},
		{
			name: "direct api envelope",
			raw: RawResponse{Source: SourceDirectApi, Body: []byte(`{"resultados": [{
				"id": "d-1", "año": 2022, "numero_expediente": "22-111",
				"tipo_providencia": "Auto", "partes": ["Uno", "Dos"],
				"archivos": [{"tipo": "Auto escrito", "url": "https://files.example/a.pdf"}]
			}]}`)},
			expected: relatoria.DocumentRecord{
				Id:          "d-1",
				Year:        "2022",
				CaseNumber:  "22-111",
				RulingType:  "Auto",
				Parties:     []string{"Uno", "Dos"},
				Categories:  []string{},
				Descriptors: []string{},
				Files: []relatoria.FileDescriptor{{
					Kind:      relatoria.DirectUrl,
					TypeLabel: "Auto escrito",
					Locator:   "https://files.example/a.pdf",
				}},
			},
		},
		{
			name: "browser render flat array",
			raw: RawResponse{Source: SourceBrowserRender, Body: []byte(`[{
				"titulo": "Sentencia 2021-0099", "expediente": "2021-0099", "fecha": "2021-01-02",
				"enlace": "https://gestor.example/visor-relatorias/xyz/archivos-providencia/Sentencia_escrita",
				"id": "xyz", "ano": "2021"
			}]`)},
			expected: relatoria.DocumentRecord{
				Id:          "xyz",
				Year:        "2021",
				CaseNumber:  "2021-0099",
				Date:        "2021-01-02",
				Title:       "Sentencia 2021-0099",
				Link:        "https://gestor.example/visor-relatorias/xyz/archivos-providencia/Sentencia_escrita",
				Parties:     []string{},
				Categories:  []string{},
				Descriptors: []string{},
				Files:       []relatoria.FileDescriptor{},
			},
		},
		{
			name: "embedded state",
			raw: RawResponse{Source: SourceEmbeddedState, Body: []byte(`{
				"router": {"path": "/results"},
				"search": {"response": {"hits": {"hits": [{"_id": "e-9", "_source": {
					"informacion": {"ano_expediente": "2020", "numero_expediente": "20-5"}
				}}]}}}
			}`)},
			expected: relatoria.DocumentRecord{
				Id:          "e-9",
				Year:        "2020",
				CaseNumber:  "20-5",
				Parties:     []string{},
				Categories:  []string{},
				Descriptors: []string{},
				Files:       []relatoria.FileDescriptor{},
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			records, err := New(telemetry.NewRecorder()).Normalize(c.raw)
			require.NoError(t, err)
			require.Len(t, records, 1)
			if diff := cmp.Diff(c.expected, records[0]); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNormalizeSkipsMalformedItems(t *testing.T) {
	rec := telemetry.NewRecorder()
	records, err := New(rec).Normalize(RawResponse{
		Source: SourceIndexQuery,
		Body: []byte(`{"hits": {"hits": [
			{"_id": "bad", "_source": {"informacion": {"numero_expediente": {"nested": true}}}},
			"not an object",
			{"_id": "good", "_source": {}}
		]}}`),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "good", records[0].Id)
	require.Len(t, rec.Reports("warning", report_normalizer_item), 2)
}

func TestNormalizeEmbeddedFlatList(t *testing.T) {
	records, err := New(telemetry.NewRecorder()).Normalize(RawResponse{
		Source: SourceEmbeddedState,
		Body:   []byte(`{"tags": ["a", "b"], "page": {"results": [{"id": "f1", "expediente": "19-1"}, {"id": "f2"}]}}`),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "19-1", records[0].CaseNumber)
	require.Equal(t, "f2", records[1].Id)
}

func TestNormalizeUnrecognizedEnvelope(t *testing.T) {
	n := New(telemetry.NewRecorder())

	cases := []RawResponse{
		{Source: SourceDirectApi, Body: []byte(`<html>blocked</html>`)},
		{Source: SourceDirectApi, Body: []byte(`{"error": "rate limited"}`)},
		{Source: SourceIndexQuery, Body: []byte(`{"error": {"type": "index_not_found"}}`)},
		{Source: SourceEmbeddedState, Body: []byte(`{"user": null}`)},
	}
	for _, raw := range cases {
		records, err := n.Normalize(raw)
		require.ErrorIs(t, err, relatoria.ErrStrategyFailure)
		require.Empty(t, records)
	}
}

func TestNormalizeEmptyHitsIsNotAnError(t *testing.T) {
	records, err := New(telemetry.NewRecorder()).Normalize(RawResponse{
		Source: SourceIndexQuery,
		Body:   []byte(`{"hits": {"hits": []}}`),
	})
	require.NoError(t, err)
	require.Empty(t, records)
}
