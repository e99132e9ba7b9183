package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/billguard/internal/llm"
)

func TestToResponseSchema_AnalysisSchema(t *testing.T) {
	s := ToResponseSchema(llm.BuildAnalysisJSONSchema())

	assert.Equal(t, "OBJECT", s["type"])
	assert.NotContains(t, s, "additionalProperties")
	assert.Contains(t, s["required"], "hospitalName")

	props := s["properties"].(map[string]any)
	hospital := props["hospitalName"].(map[string]any)
	assert.Equal(t, "STRING", hospital["type"])
	assert.NotContains(t, hospital, "minLength")

	ins := props["insurance"].(map[string]any)["properties"].(map[string]any)
	claimed := ins["claimedAmount"].(map[string]any)
	assert.Equal(t, "NUMBER", claimed["type"])
	assert.Equal(t, true, claimed["nullable"])

	issues := props["issues"].(map[string]any)
	require.Equal(t, "ARRAY", issues["type"])
	item := issues["items"].(map[string]any)
	cat := item["properties"].(map[string]any)["category"].(map[string]any)
	assert.Contains(t, cat["enum"], "Insurance Error")
}

func TestToResponseSchema_AnyTypeList(t *testing.T) {
	s := ToResponseSchema(map[string]any{"type": []any{"null", "integer"}})
	assert.Equal(t, "INTEGER", s["type"])
	assert.Equal(t, true, s["nullable"])
	assert.Nil(t, ToResponseSchema(nil))
}
