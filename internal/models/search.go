package models

import (
	"fmt"
	"time"
)

// SearchField holds a single text or date value. Exactly one is set.
type SearchField struct {
	Text string     `json:"text,omitempty"`
	Date *time.Time `json:"date,omitempty"`
}

// SearchDocument is the flat representation of an entity in a search index.
// It is a snapshot and is not kept in sync with the entity store.
type SearchDocument struct {
	ID     string                 `json:"id"`
	Fields map[string]SearchField `json:"fields"`
}

// NewSearchDocument creates an empty document with the given id.
func NewSearchDocument(id string) SearchDocument {
	return SearchDocument{ID: id, Fields: make(map[string]SearchField)}
}

// SetText stores a text field, replacing any previous value.
func (d SearchDocument) SetText(name, value string) SearchDocument {
	d.Fields[name] = SearchField{Text: value}
	return d
}

// SetDate stores a date field, replacing any previous value.
func (d SearchDocument) SetDate(name string, value time.Time) SearchDocument {
	v := value
	d.Fields[name] = SearchField{Date: &v}
	return d
}

// Text returns the named text field or an error when it is missing.
func (d SearchDocument) Text(name string) (string, error) {
	f, ok := d.Fields[name]
	if !ok {
		return "", fmt.Errorf("document %s: missing field %q", d.ID, name)
	}
	if f.Date != nil {
		return "", fmt.Errorf("document %s: field %q is a date", d.ID, name)
	}
	return f.Text, nil
}

// Date returns the named date field or an error when it is missing.
func (d SearchDocument) Date(name string) (time.Time, error) {
	f, ok := d.Fields[name]
	if !ok || f.Date == nil {
		return time.Time{}, fmt.Errorf("document %s: missing date field %q", d.ID, name)
	}
	return *f.Date, nil
}

// ScoredDocument is a search hit.
type ScoredDocument struct {
	SearchDocument
	Score float64 `json:"score"`
}

// SearchQuery is a free text query against one index.
type SearchQuery struct {
	Text  string
	Limit int
}
