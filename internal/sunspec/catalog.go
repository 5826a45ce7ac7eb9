package sunspec

import (
	"crypto/sha256"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sync"
)

// catalogCache maps a content fingerprint to its parsed model list.
// Repeated parses of byte-identical catalog input are served from here
// instead of re-parsing, per spec.md §4.2.
var catalogCache sync.Map // map[[32]byte][]ModelDefinition

// jsonModel is the shape accepted for one entry in a JSON catalog: either
// `length` or `len` may be used for the declared register count.
type jsonModel struct {
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Length *int   `json:"length"`
	Len    *int   `json:"len"`
}

type jsonCatalogWrapper struct {
	Models []jsonModel `json:"models"`
}

// ParseJSONCatalog accepts either a top-level array of
// {id, name, length|len} or {"models": [...]}, and returns a model list
// without absolute addresses (Start is always 0; the caller resolves
// offsets against base_address).
func ParseJSONCatalog(data []byte) ([]ModelDefinition, error) {
	if cached, ok := lookupCatalogCache(data); ok {
		return cached, nil
	}

	var entries []jsonModel
	var wrapper jsonCatalogWrapper
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Models != nil {
		entries = wrapper.Models
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("sunspec: invalid JSON catalog: %w", err)
	}

	models := make([]ModelDefinition, 0, len(entries))
	for _, e := range entries {
		declared := e.Length
		if declared == nil {
			declared = e.Len
		}
		if declared == nil {
			slog.Warn("sunspec: catalog entry missing length/len, skipping", "id", e.ID)
			continue
		}
		name := e.Name
		if name == "" {
			name = ModelName(e.ID)
		}
		models = append(models, ModelDefinition{
			ID:     e.ID,
			Name:   name,
			Length: uint16(*declared + 2),
		})
	}

	storeCatalogCache(data, models)
	return models, nil
}

// xmlModel is the shape of one <model> element in an XML catalog.
type xmlModel struct {
	ID     *uint16 `xml:"id,attr"`
	Name   string  `xml:"name,attr"`
	Len    *int    `xml:"len,attr"`
	Length *int    `xml:"length,attr"`
}

type xmlCatalog struct {
	XMLName xml.Name   `xml:"catalog"`
	Models  []xmlModel `xml:"model"`
}

// ParseXMLCatalog accepts `<model id= name= len|length= />` entries.
// Entries missing id or length are skipped with a warning.
func ParseXMLCatalog(data []byte) ([]ModelDefinition, error) {
	if cached, ok := lookupCatalogCache(data); ok {
		return cached, nil
	}

	var cat xmlCatalog
	if err := xml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("sunspec: invalid XML catalog: %w", err)
	}

	models := make([]ModelDefinition, 0, len(cat.Models))
	for _, e := range cat.Models {
		declared := e.Length
		if declared == nil {
			declared = e.Len
		}
		if e.ID == nil || declared == nil {
			slog.Warn("sunspec: catalog entry missing id/length, skipping")
			continue
		}
		name := e.Name
		if name == "" {
			name = ModelName(*e.ID)
		}
		models = append(models, ModelDefinition{
			ID:     *e.ID,
			Name:   name,
			Length: uint16(*declared + 2),
		})
	}

	storeCatalogCache(data, models)
	return models, nil
}

func fingerprint(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func lookupCatalogCache(data []byte) ([]ModelDefinition, bool) {
	v, ok := catalogCache.Load(fingerprint(data))
	if !ok {
		return nil, false
	}
	return v.([]ModelDefinition), true
}

func storeCatalogCache(data []byte, models []ModelDefinition) {
	catalogCache.Store(fingerprint(data), models)
}
