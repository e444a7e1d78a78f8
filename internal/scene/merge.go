package scene

import (
	"whiteboard-backend/internal/model"
)

// Delta is an incremental scene update: element additions, per-element field
// patches, and deletions by id. At least one of the three must be present on
// the wire.
type Delta struct {
	Added   []model.Element `json:"added"`
	Updated []model.Element `json:"updated"`
	Deleted []string        `json:"deleted"`
}

// Empty reports whether the delta carries no changes at all.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// ApplyDelta merges a delta into an element set and returns the result.
// Order matters: deletions first, then field patches, then additions.
//
// Deletions remove elements outright rather than marking tombstones, which
// means a patch arriving after the deletion of its target id finds nothing to
// patch and silently no-ops. That is deliberate: a late-arriving update for a
// deleted element must not resurrect it.
func ApplyDelta(elements []model.Element, d Delta) []model.Element {
	deleted := make(map[string]bool, len(d.Deleted))
	for _, id := range d.Deleted {
		deleted[id] = true
	}

	out := make([]model.Element, 0, len(elements)+len(d.Added))
	for _, el := range elements {
		if deleted[el.ID] {
			continue
		}
		out = append(out, el)
	}

	patches := make(map[string]model.Element, len(d.Updated))
	for _, patch := range d.Updated {
		patches[patch.ID] = patch
	}
	for i := range out {
		if patch, ok := patches[out[i].ID]; ok {
			out[i].ApplyPatch(patch)
		}
	}

	out = append(out, d.Added...)
	return out
}
