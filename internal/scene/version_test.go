package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"whiteboard-backend/internal/model"
)

func el(id string, version int64) model.Element {
	return model.Element{ID: id, Type: "rectangle", Version: version}
}

func TestSceneVersion_OrderIndependent(t *testing.T) {
	a := []model.Element{el("a", 3), el("b", 7), el("c", 1)}
	b := []model.Element{el("c", 1), el("a", 3), el("b", 7)}

	assert.Equal(t, SceneVersion(a), SceneVersion(b))
}

func TestSceneVersion_IgnoresDeletedElements(t *testing.T) {
	deleted := el("b", 100)
	deleted.IsDeleted = true

	with := []model.Element{el("a", 3), deleted}
	without := []model.Element{el("a", 3)}

	assert.Equal(t, SceneVersion(without), SceneVersion(with))
}

func TestSceneVersion_GrowsWithNewerRevisions(t *testing.T) {
	older := []model.Element{el("a", 3), el("b", 7)}
	newer := []model.Element{el("a", 4), el("b", 7)}

	assert.Greater(t, SceneVersion(newer), SceneVersion(older))
}

func TestSceneVersion_EmptyScene(t *testing.T) {
	assert.Equal(t, int64(0), SceneVersion(nil))
	assert.Equal(t, int64(0), SceneVersion([]model.Element{}))
}
