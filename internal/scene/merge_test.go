package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-backend/internal/model"
)

func elementIDs(elements []model.Element) []string {
	ids := make([]string, len(elements))
	for i := range elements {
		ids[i] = elements[i].ID
	}
	return ids
}

func TestApplyDelta_AddThenDelete(t *testing.T) {
	e1 := el("e1", 1)

	set := ApplyDelta(nil, Delta{Added: []model.Element{e1}})
	assert.Equal(t, []string{"e1"}, elementIDs(set))

	set = ApplyDelta(set, Delta{Deleted: []string{"e1"}})
	assert.Empty(t, set)
}

func TestApplyDelta_UpdateMissingIDIsNoOp(t *testing.T) {
	existing := []model.Element{el("a", 1)}

	patch := el("ghost", 2)
	patch.X = 99

	out := ApplyDelta(existing, Delta{Updated: []model.Element{patch}})

	assert.Equal(t, []string{"a"}, elementIDs(out))
	assert.Equal(t, 0.0, out[0].X)
}

func TestApplyDelta_PatchOverwritesOnlyNamedFields(t *testing.T) {
	existing := []model.Element{{
		ID: "a", Type: "rectangle", X: 10, Y: 20, Width: 100, Height: 50, Version: 1,
	}}

	// A wire patch naming only x and version must leave the rest alone.
	var patch model.Element
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","x":99,"version":2}`), &patch))

	out := ApplyDelta(existing, Delta{Updated: []model.Element{patch}})

	assert.Equal(t, 99.0, out[0].X)
	assert.Equal(t, int64(2), out[0].Version)
	assert.Equal(t, 20.0, out[0].Y)
	assert.Equal(t, 100.0, out[0].Width)
	assert.Equal(t, "rectangle", out[0].Type)
}

func TestApplyDelta_DeleteWinsOverPatchInSameBatch(t *testing.T) {
	existing := []model.Element{el("a", 1)}

	patch := el("a", 2)
	out := ApplyDelta(existing, Delta{
		Updated: []model.Element{patch},
		Deleted: []string{"a"},
	})

	// Deleted ids are removed before patches run, so the patch no-ops
	// instead of resurrecting the element.
	assert.Empty(t, out)
}

func TestApplyDelta_AppendsAddedAfterExisting(t *testing.T) {
	existing := []model.Element{el("a", 1), el("b", 1)}

	out := ApplyDelta(existing, Delta{Added: []model.Element{el("c", 1)}})

	assert.Equal(t, []string{"a", "b", "c"}, elementIDs(out))
}

func TestApplyDelta_DoesNotMutateInput(t *testing.T) {
	existing := []model.Element{el("a", 1)}

	patch := el("a", 5)
	ApplyDelta(existing, Delta{Updated: []model.Element{patch}})

	assert.Equal(t, int64(1), existing[0].Version)
}

func TestDelta_Empty(t *testing.T) {
	assert.True(t, Delta{}.Empty())
	assert.False(t, Delta{Deleted: []string{"x"}}.Empty())
}
