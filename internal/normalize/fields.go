package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// text accepts strings, numbers and null, anything else is a parse failure.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
		return nil
	case '{', '[':
		return fmt.Errorf("expected a scalar, got %s", string(data[:1]))
	}
	*t = text(data)
	return nil
}

func first(values ...text) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

type named struct {
	Nombre text `json:"nombre"`
	Name   text `json:"name"`
}

// nameList accepts either ["a", "b"] or [{"nombre": "a"}, ...].
type nameList []string

func (l *nameList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			*l = nil
			return nil
		}
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var n named
			if err := json.Unmarshal(item, &n); err != nil {
				return err
			}
			if name := first(n.Nombre, n.Name); name != "" {
				out = append(out, name)
			}
			continue
		}
		var t text
		if err := json.Unmarshal(item, &t); err != nil {
			return err
		}
		if t != "" {
			out = append(out, string(t))
		}
	}
	*l = out
	return nil
}

type information struct {
	AnoExpediente    text `json:"ano_expediente"`
	NumeroExpediente text `json:"numero_expediente"`
	TipoProvidencia  text `json:"tipo_providencia"`
	FechaProvidencia text `json:"fecha_providencia"`
}

type thesaurus struct {
	Categoria  nameList `json:"categoria"`
	Descriptor nameList `json:"descriptor"`
}

type abstract struct {
	Transcripcion text `json:"transcripcion"`
}

type file struct {
	TipoArchivo text `json:"tipo_archivo"`
	Tipo        text `json:"tipo"`
	PathS3      text `json:"path_s3"`
	Path        text `json:"path"`
	Url         text `json:"url"`
	Enlace      text `json:"enlace"`
}

// item is the union of every field name the portal has been seen to use,
// both the nested index layout and the flat api layout.
type item struct {
	Id          text `json:"id"`
	UnderId     text `json:"_id"`
	IdDocumento text `json:"id_documento"`

	Informacion      *information `json:"informacion"`
	Tesauro          *thesaurus   `json:"tesauro"`
	DocumentoResumen *abstract    `json:"documento_resumen"`
	Partes           nameList     `json:"partes"`
	Archivos         []file       `json:"archivos"`

	Año              text `json:"año"`
	Ano              text `json:"ano"`
	Anio             text `json:"anio"`
	AnoExpediente    text `json:"ano_expediente"`
	Year             text `json:"year"`
	NumeroExpediente text `json:"numero_expediente"`
	Expediente       text `json:"expediente"`
	Numero           text `json:"numero"`
	Radicado         text `json:"radicado"`
	TipoProvidencia  text `json:"tipo_providencia"`
	FechaProvidencia text `json:"fecha_providencia"`
	Fecha            text `json:"fecha"`
	Titulo           text `json:"titulo"`
	Enlace           text `json:"enlace"`
	Url              text `json:"url"`
	Resumen          text `json:"resumen"`

	Categorias   nameList `json:"categorias"`
	Descriptores nameList `json:"descriptores"`
}

type hit struct {
	Id     text `json:"_id"`
	Source item `json:"_source"`
}
