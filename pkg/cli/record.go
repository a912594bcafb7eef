package cli

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Record is a schemaless document addressed by its string _id.
// The CLI binds it to whichever collection a command names.
type Record struct {
	ID     string `bson:"_id,omitempty"`
	Fields bson.M `bson:",inline"`
}

func (r *Record) GetID() string   { return r.ID }
func (r *Record) SetID(id string) { r.ID = id }

// MarshalJSON renders the record as one flat object with an "_id" key.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["_id"] = r.ID
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = ""
	if id, ok := raw["_id"]; ok {
		s, ok := id.(string)
		if !ok {
			return fmt.Errorf("record _id must be a string, got %T", id)
		}
		r.ID = s
		delete(raw, "_id")
	}
	r.Fields = bson.M(raw)
	return nil
}
