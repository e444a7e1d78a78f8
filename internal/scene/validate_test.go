package scene

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"whiteboard-backend/internal/model"
)

func TestValidateRoomID(t *testing.T) {
	assert.True(t, ValidateRoomID("demo").Valid())
	assert.True(t, ValidateRoomID(strings.Repeat("r", 100)).Valid())

	assert.False(t, ValidateRoomID("").Valid())
	assert.False(t, ValidateRoomID(strings.Repeat("r", 101)).Valid())
}

func TestValidateElements(t *testing.T) {
	assert.True(t, ValidateElements(nil).Valid())
	assert.True(t, ValidateElements([]model.Element{el("a", 1)}).Valid())

	res := ValidateElements([]model.Element{el("a", 1), {Type: "rectangle"}})
	assert.False(t, res.Valid())
	assert.Contains(t, res.Error(), "no id")
}

func TestValidateDelta(t *testing.T) {
	assert.False(t, ValidateDelta(Delta{}).Valid())
	assert.True(t, ValidateDelta(Delta{Deleted: []string{"a"}}).Valid())
	assert.False(t, ValidateDelta(Delta{Added: []model.Element{{}}}).Valid())
	assert.False(t, ValidateDelta(Delta{Deleted: []string{""}}).Valid())
}

func TestResult_ErrorSummarizesMultipleReasons(t *testing.T) {
	var res Result
	res.addf("first problem")
	res.addf("second problem")

	assert.Contains(t, res.Error(), "first problem")
	assert.Contains(t, res.Error(), "1 more")
}
