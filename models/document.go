package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// fromDocument hydrates a model from a stored document. The caller passes
// a value pre-filled with defaults; keys missing from raw keep the default
// and keys not declared on the model are ignored.
func fromDocument[T any](raw bson.Raw, model *T) (*T, error) {
	if err := bson.Unmarshal(raw, model); err != nil {
		return nil, fmt.Errorf("decode %T: %w", model, err)
	}
	return model, nil
}
