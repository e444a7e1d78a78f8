// Package scene implements the content-level core of the whiteboard backend:
// the scene version clock, numeric sanitization, incremental delta merging,
// and inbound payload validation. It has no transport or storage dependencies.
package scene

import (
	"whiteboard-backend/internal/model"
)

// SceneVersion computes the scalar version of an element set: the sum of each
// non-deleted element's revision counter. It is deterministic and independent
// of element order, so client and server agree on it bit-for-bit given the
// same elements. Staleness comparison across replicas relies on exactly this
// function; changing it silently desynchronizes every connected client.
func SceneVersion(elements []model.Element) int64 {
	var version int64
	for i := range elements {
		if elements[i].IsDeleted {
			continue
		}
		version += elements[i].Version
	}
	return version
}
