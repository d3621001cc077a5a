package validation

import (
	"reflect"
	"strings"
)

// jsonName reports fields by their JSON (or form) name so messages match
// what the client sent.
func jsonName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
