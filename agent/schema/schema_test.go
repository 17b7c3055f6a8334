package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/schema"
)

const validatedSchema = `{
	"type": "object",
	"properties": {
		"x": {"type": "integer", "minimum": 10}
	},
	"required": ["x"]
}`

func TestValidateMissingRequired(t *testing.T) {
	in := schema.NewIntrospector()
	require.NoError(t, in.Register("validated", []byte(validatedSchema)))

	verr := in.Validate("validated", map[string]any{})
	require.NotNil(t, verr)
	require.Contains(t, verr.Missing, "x")
}

func TestValidatePasses(t *testing.T) {
	in := schema.NewIntrospector()
	require.NoError(t, in.Register("validated", []byte(validatedSchema)))

	verr := in.Validate("validated", map[string]any{"x": 12})
	require.Nil(t, verr)
}

func TestValidateTypeViolation(t *testing.T) {
	in := schema.NewIntrospector()
	require.NoError(t, in.Register("validated", []byte(validatedSchema)))

	verr := in.Validate("validated", map[string]any{"x": 1})
	require.NotNil(t, verr)
	require.NotEmpty(t, verr.Errors)
}

func TestValidateUnregisteredToolAcceptsAnything(t *testing.T) {
	in := schema.NewIntrospector()
	require.Nil(t, in.Validate("unknown", map[string]any{"anything": true}))
}

func TestRequiredFields(t *testing.T) {
	in := schema.NewIntrospector()
	require.NoError(t, in.Register("validated", []byte(validatedSchema)))
	require.Equal(t, []string{"x"}, in.RequiredFields("validated"))
	require.Nil(t, in.RequiredFields("unknown"))
}

func TestRegisterInvalidSchemaErrors(t *testing.T) {
	in := schema.NewIntrospector()
	err := in.Register("broken", []byte(`{"type": "this is not a valid type keyword value`))
	require.Error(t, err)
}
