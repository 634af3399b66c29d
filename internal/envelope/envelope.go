// Package envelope canonicalizes list-shaped artifacts that older writers
// persisted in different outer shapes.
package envelope

import (
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Shape is the outer form a document was found in.
type Shape int

const (
	Unknown Shape = iota
	Bare
	Value
	Canonical
)

func (s Shape) String() string {
	switch s {
	case Bare:
		return "bare"
	case Value:
		return "value"
	case Canonical:
		return "canonical"
	default:
		return "unknown"
	}
}

const (
	QuizField       = "questions"
	ImagesField     = "items"
	SlidesField     = "slides"
	ReferencesField = "references"
)

// Normalize returns raw as {field: [...]}. Bare arrays are wrapped, {value: [...]}
// is renamed and {field: [...]} passes through with its other keys kept. Anything
// else becomes {field: []} and is reported as Unknown.
func Normalize(raw any, field string) (map[string]any, Shape) {
	switch v := raw.(type) {
	case []any:
		return map[string]any{field: v}, Bare
	case map[string]any:
		if x, has := v[field]; has {
			switch x.(type) {
			case []any:
				return v, Canonical
			case nil:
				v[field] = []any{}
				return v, Canonical
			}
			break
		}
		if list, ok := v["value"].([]any); ok {
			out := make(map[string]any, len(v))
			for k, x := range v {
				if k != "value" {
					out[k] = x
				}
			}
			out[field] = list
			return out, Value
		}
	}
	return map[string]any{field: []any{}}, Unknown
}

func Quiz(raw any) (map[string]any, Shape)       { return Normalize(raw, QuizField) }
func Images(raw any) (map[string]any, Shape)     { return Normalize(raw, ImagesField) }
func Slides(raw any) (map[string]any, Shape)     { return Normalize(raw, SlidesField) }
func References(raw any) (map[string]any, Shape) { return Normalize(raw, ReferencesField) }

// Decode parses data, normalizes it under field and decodes the canonical form into out.
// A document that cannot be parsed, has an unknown shape, or whose elements do not fit
// out is decoded as the empty list instead. Decode never fails.
func Decode(data []byte, field string, out any) Shape {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		log.WithField("field", field).WithError(err).Warn("envelope: unparsable document, using empty list")
		emptyInto(field, out)
		return Unknown
	}
	canon, shape := Normalize(raw, field)
	if shape == Unknown {
		log.WithField("field", field).Warn("envelope: unrecognized document shape, using empty list")
	}
	b, err := json.Marshal(canon)
	if err == nil {
		err = json.Unmarshal(b, out)
	}
	if err != nil {
		log.WithField("field", field).WithError(err).Warn("envelope: elements do not match schema, using empty list")
		emptyInto(field, out)
		return Unknown
	}
	return shape
}

func emptyInto(field string, out any) {
	b, _ := json.Marshal(map[string]any{field: []any{}})
	_ = json.Unmarshal(b, out)
}
