package scene

import (
	"fmt"

	"whiteboard-backend/internal/model"
)

// Result is the outcome of validating an inbound payload. The caller decides
// the accept/reject policy; validation itself never mutates or drops data.
type Result struct {
	Reasons []string
}

// Valid reports whether validation found no problems.
func (r Result) Valid() bool {
	return len(r.Reasons) == 0
}

// Error summarizes the failure reasons for surfacing to the sender.
func (r Result) Error() string {
	if r.Valid() {
		return ""
	}
	msg := r.Reasons[0]
	if len(r.Reasons) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(r.Reasons)-1)
	}
	return msg
}

func (r *Result) addf(format string, args ...any) {
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

const maxRoomIDLength = 100

// ValidateRoomID checks the room identifier constraint: 1-100 characters.
func ValidateRoomID(id string) Result {
	var res Result
	if id == "" {
		res.addf("room id is required")
	} else if len(id) > maxRoomIDLength {
		res.addf("room id exceeds %d characters", maxRoomIDLength)
	}
	return res
}

// ValidateElements checks that every element in a full-scene payload carries
// an id. Geometry is not validated here; the sanitizer normalizes it instead
// of rejecting.
func ValidateElements(elements []model.Element) Result {
	var res Result
	for i := range elements {
		if elements[i].ID == "" {
			res.addf("element at index %d has no id", i)
		}
	}
	return res
}

// ValidateDelta checks an incremental update: it must carry at least one
// change, and added elements must have ids. Updated entries without a
// matching id are dropped later by the merge, so they are not an error here.
func ValidateDelta(d Delta) Result {
	var res Result
	if d.Empty() {
		res.addf("incremental update carries no changes")
	}
	for i := range d.Added {
		if d.Added[i].ID == "" {
			res.addf("added element at index %d has no id", i)
		}
	}
	for i, id := range d.Deleted {
		if id == "" {
			res.addf("deleted id at index %d is empty", i)
		}
	}
	return res
}
