package validator_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(
		validator.RequiredString("plan_id", "plan_pro"),
		validator.ValidEmail("email", "prof@escola.com.br"),
		validator.ValidURL("success_url", "https://app.example.com/ok"),
	))

	err := validator.Apply(
		validator.RequiredString("plan_id", "  "),
		validator.ValidEmail("email", "nope"),
		validator.ValidURL("success_url", "/relative"),
		validator.MaxLenString("email", "ééé", 2),
	)
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))

	ve := validator.ExtractValidationErrors(fmt.Errorf("wrapped: %w", err))
	require.Len(t, ve, 4)
	assert.True(t, ve.Has("plan_id"))
	assert.False(t, ve.Has("cancel_url"))
	assert.Len(t, ve.Fields()["email"], 2)
	assert.Equal(t, "validation.required", ve[0].TranslationKey)
	assert.Equal(t, 2, ve[3].TranslationValues["max"])
	assert.Contains(t, err.Error(), "plan_id: field is required")

	assert.Nil(t, validator.ExtractValidationErrors(assert.AnError))
	assert.False(t, validator.IsValidationError(nil))
}

func TestRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule validator.Rule
		ok   bool
	}{
		{"email with display name", validator.ValidEmail("e", "Ana <ana@x.com>"), false},
		{"email without tld", validator.ValidEmail("e", "ana@localhost"), false},
		{"email", validator.ValidEmail("e", "ana@x.com"), true},
		{"ftp url", validator.ValidURL("u", "ftp://x.com"), false},
		{"http url", validator.ValidURL("u", "http://localhost:8080/back"), true},
		{"one of", validator.OneOfString("s", "pro", []string{"starter", "pro"}), true},
		{"not one of", validator.OneOfString("s", "gold", []string{"starter", "pro"}), false},
		{"max len", validator.MaxLenString("s", "abc", 3), true},
		{"between", validator.BetweenInt("n", 64, 64, 128), true},
		{"below range", validator.BetweenInt("n", 63, 64, 128), false},
		{"non zero", validator.NonZeroInt("n", -2), true},
		{"zero", validator.NonZeroInt("n", 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.rule.Check())
		})
	}
}

func TestWhen(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.When(false, validator.ValidEmail("email", "bad"))))

	err := validator.Apply(validator.When(true, validator.RequiredString("a", "x"), validator.ValidEmail("email", "bad")))
	ve := validator.ExtractValidationErrors(err)
	require.Len(t, ve, 1)
	assert.Equal(t, "email", ve[0].Field)
}
