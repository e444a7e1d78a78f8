package model

import (
	"encoding/json"
)

// Element field names the server interprets. Everything else an element
// carries (colors, stroke style, points, text) is relayed untouched via Props.
const (
	fieldID           = "id"
	fieldType         = "type"
	fieldX            = "x"
	fieldY            = "y"
	fieldWidth        = "width"
	fieldHeight       = "height"
	fieldVersion      = "version"
	fieldVersionNonce = "versionNonce"
	fieldIsDeleted    = "isDeleted"
)

// Element is a single drawing primitive in a scene. Identity is by ID; two
// elements with the same ID are the same logical entity at different
// revisions. Deletions are expressed as IsDeleted tombstones in full-scene
// payloads so they propagate across clients.
type Element struct {
	ID           string
	Type         string
	X            float64
	Y            float64
	Width        float64
	Height       float64
	Version      int64
	VersionNonce int64
	IsDeleted    bool

	// Props holds renderer-specific fields the server does not interpret.
	Props map[string]json.RawMessage

	// present records which interpreted fields the wire payload actually
	// carried, so partial updates only overwrite what they name.
	present map[string]bool
}

// Has reports whether the named interpreted field was present in the payload
// this element was decoded from. Elements constructed in code report true for
// every field.
func (e *Element) Has(field string) bool {
	if e.present == nil {
		return true
	}
	return e.present[field]
}

// ApplyPatch overwrites the fields named by patch, leaving the rest of the
// element untouched. Used for per-element field merges in incremental updates.
func (e *Element) ApplyPatch(patch Element) {
	if patch.Has(fieldType) {
		e.Type = patch.Type
	}
	if patch.Has(fieldX) {
		e.X = patch.X
	}
	if patch.Has(fieldY) {
		e.Y = patch.Y
	}
	if patch.Has(fieldWidth) {
		e.Width = patch.Width
	}
	if patch.Has(fieldHeight) {
		e.Height = patch.Height
	}
	if patch.Has(fieldVersion) {
		e.Version = patch.Version
	}
	if patch.Has(fieldVersionNonce) {
		e.VersionNonce = patch.VersionNonce
	}
	if patch.Has(fieldIsDeleted) {
		e.IsDeleted = patch.IsDeleted
	}
	if len(patch.Props) > 0 {
		// Copy-on-write: the receiver may share its Props map with another
		// snapshot of the same element.
		props := make(map[string]json.RawMessage, len(e.Props)+len(patch.Props))
		for k, v := range e.Props {
			props[k] = v
		}
		for k, v := range patch.Props {
			props[k] = v
		}
		e.Props = props
	}
}

// UnmarshalJSON decodes an element leniently: interpreted fields of the wrong
// type fall back to their zero value instead of failing the whole payload, and
// unknown fields are preserved verbatim in Props.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Element{
		Props:   make(map[string]json.RawMessage),
		present: make(map[string]bool),
	}

	for key, val := range raw {
		switch key {
		case fieldID:
			e.ID = lenientString(val)
		case fieldType:
			e.Type = lenientString(val)
		case fieldX:
			e.X = lenientFloat(val)
		case fieldY:
			e.Y = lenientFloat(val)
		case fieldWidth:
			e.Width = lenientFloat(val)
		case fieldHeight:
			e.Height = lenientFloat(val)
		case fieldVersion:
			e.Version = int64(lenientFloat(val))
		case fieldVersionNonce:
			e.VersionNonce = int64(lenientFloat(val))
		case fieldIsDeleted:
			e.IsDeleted = lenientBool(val)
		default:
			e.Props[key] = val
			continue
		}
		e.present[key] = true
	}

	return nil
}

// MarshalJSON re-assembles interpreted fields and relayed props into one
// object, so what a client receives matches what the sender emitted.
func (e Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Props)+9)
	for k, v := range e.Props {
		out[k] = v
	}
	out[fieldID] = e.ID
	out[fieldType] = e.Type
	out[fieldX] = e.X
	out[fieldY] = e.Y
	out[fieldWidth] = e.Width
	out[fieldHeight] = e.Height
	out[fieldVersion] = e.Version
	out[fieldVersionNonce] = e.VersionNonce
	out[fieldIsDeleted] = e.IsDeleted
	return json.Marshal(out)
}

func lenientString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func lenientFloat(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}

func lenientBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}
