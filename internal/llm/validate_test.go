package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisSchema_AcceptsMinimalDocument(t *testing.T) {
	doc := []byte(`{
		"hospitalName": "H", "totalAmount": 10, "currency": "PKR", "summary": "s",
		"issues": [], "verificationMethodology": [],
		"insurance": {"status": "Not Found", "detectedProvider": null}
	}`)
	schema, err := CompileSchema(AnalysisSchemaName, BuildAnalysisJSONSchema())
	require.NoError(t, err)
	require.NoError(t, ValidateJSON(schema, doc))
}

func TestAnalysisSchema_Rejects(t *testing.T) {
	schema, err := CompileSchema(AnalysisSchemaName, BuildAnalysisJSONSchema())
	require.NoError(t, err)

	bad := map[string]string{
		"unknown category": `{"hospitalName":"H","totalAmount":1,"currency":"PKR","summary":"s","verificationMethodology":[],
			"insurance":{"status":"Applied"},
			"issues":[{"title":"t","description":"d","estimatedOvercharge":1,"category":"Fraud","severity":"High"}]}`,
		"missing insurance status": `{"hospitalName":"H","totalAmount":1,"currency":"PKR","summary":"s","verificationMethodology":[],
			"insurance":{},"issues":[]}`,
		"empty hospital": `{"hospitalName":"","totalAmount":1,"currency":"PKR","summary":"s","verificationMethodology":[],
			"insurance":{"status":"Applied"},"issues":[]}`,
		"extra property": `{"hospitalName":"H","totalAmount":1,"currency":"PKR","summary":"s","verificationMethodology":[],
			"insurance":{"status":"Applied"},"issues":[],"notes":"x"}`,
	}
	for name, doc := range bad {
		assert.Error(t, ValidateJSON(schema, []byte(doc)), name)
	}
}

func TestDisputeSchema(t *testing.T) {
	schema, err := CompileSchema(DisputeSchemaName, BuildDisputeJSONSchema())
	require.NoError(t, err)
	assert.NoError(t, ValidateJSON(schema, []byte(`{"letter":"Dear ...","steps":["a","b"]}`)))
	assert.Error(t, ValidateJSON(schema, []byte(`{"letter":"Dear ...","steps":[1]}`)))
}
