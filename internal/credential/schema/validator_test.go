package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/internal/credential/models"
)

func safeguardingSchema() *models.Schema {
	return &models.Schema{
		ID:             "schema:safeguarding:v1",
		Version:        "1.0",
		CredentialType: "SafeguardingCredential",
		Properties: map[string]models.PropertySpec{
			"checkStatus": {Type: "string", Enum: []any{"cleared", "pending", "rejected"}},
			"checkDate":   {Type: "string", Format: "date-time"},
			"level":       {Type: "integer"},
		},
		Required: []string{"checkStatus", "checkDate"},
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	s := safeguardingSchema()

	t.Run("valid subject", func(t *testing.T) {
		err := v.Validate(s, map[string]any{
			"id":          "did:key:zSubject",
			"checkStatus": "cleared",
			"checkDate":   "2026-01-02T03:04:05Z",
			"level":       2,
		})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := v.Validate(s, map[string]any{"checkStatus": "cleared"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Error(), "checkDate")
	})

	t.Run("enum violation", func(t *testing.T) {
		err := v.Validate(s, map[string]any{"checkStatus": "unknown", "checkDate": "2026-01-02T03:04:05Z"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		require.NotEmpty(t, ve.Fields)
		assert.Equal(t, "checkStatus", ve.Fields[0].Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := v.Validate(s, map[string]any{"checkStatus": "cleared", "checkDate": "2026-01-02T03:04:05Z", "level": "high"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "level", ve.Fields[0].Field)
	})

	t.Run("numbers keep integer precision", func(t *testing.T) {
		ok := v.Validate(s, map[string]any{"checkStatus": "cleared", "checkDate": "2026-01-02T03:04:05Z", "level": int64(9007199254740993)})
		assert.NoError(t, ok)

		err := v.Validate(s, map[string]any{"checkStatus": "cleared", "checkDate": "2026-01-02T03:04:05Z", "level": 2.5})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "level", ve.Fields[0].Field)
	})

	t.Run("bad date-time format", func(t *testing.T) {
		err := v.Validate(s, map[string]any{"checkStatus": "cleared", "checkDate": "yesterday"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "checkDate", ve.Fields[0].Field)
	})
}

func TestDocument(t *testing.T) {
	doc := Document(safeguardingSchema())
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"checkStatus", "checkDate"}, doc["required"])
	props := doc["properties"].(map[string]any)
	assert.Len(t, props, 3)
}
