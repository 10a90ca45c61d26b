package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "adminconsole/pkg/domain-errors"
)

type sample struct {
	Email  string   `json:"email" validate:"required,email"`
	Status string   `json:"status" validate:"oneof=active suspended"`
	IDs    []string `json:"userIds" validate:"min=1"`
}

func TestStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		assert.NoError(t, Struct(sample{Email: "a@example.com", Status: "active", IDs: []string{"x"}}))
	})

	t.Run("failures are bad requests naming json fields", func(t *testing.T) {
		err := Struct(sample{Email: "nope", Status: "deleted"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		msg := dErrors.MessageOf(err)
		assert.Contains(t, msg, "email must be a valid email address")
		assert.Contains(t, msg, "status must be one of: active suspended")
		assert.Contains(t, msg, "userIds must be at least 1")
	})
}
