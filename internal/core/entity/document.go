package entity

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Document is a schemaless entity: a flat set of JSON fields plus an id.
// Config-declared entity types are stored as documents.
type Document struct {
	ID     uuid.UUID      `json:"id"`
	Fields map[string]any `json:"-"`
}

// NewDocument returns a document with a fresh id.
func NewDocument(fields map[string]any) *Document {
	return &Document{ID: uuid.New(), Fields: fields}
}

func (d *Document) EntityID() (uuid.UUID, bool) {
	if d == nil || d.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return d.ID, true
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["id"] = d.ID
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = uuid.Nil
	if v, ok := raw["id"].(string); ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("document id: %w", err)
		}
		d.ID = id
	}
	delete(raw, "id")
	d.Fields = raw
	return nil
}

// Decoder turns a stored JSON body back into an entity of one type.
type Decoder func(data []byte) (Entity, error)

// JSONDecoder decodes bodies into fresh values of T.
func JSONDecoder[T any, P interface {
	*T
	Entity
}]() Decoder {
	return func(data []byte) (Entity, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return P(&v), nil
	}
}

// DocumentDecoder decodes bodies into *Document.
func DocumentDecoder() Decoder {
	return JSONDecoder[Document]()
}
