package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transformkit/remap/internal/types"
)

const subjectSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"id": {"type": "string"},
		"enrolment_date": {"type": "string", "format": "date"},
		"age": {"type": "number", "minimum": 0}
	},
	"required": ["id", "age"]
}`

func writeSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "subject.json"), []byte(subjectSchema), 0o644)
	require.NoError(t, err)
	return dir
}

func TestCompileAndValidate(t *testing.T) {
	dir := writeSchema(t)
	v, err := Compile("subject.json", dir, nil)
	require.NoError(t, err)

	valid, msg := v.Validate(types.OutputRow{"id": "001", "age": int64(42)})
	assert.True(t, valid)
	assert.Empty(t, msg)

	valid, msg = v.Validate(types.OutputRow{"id": "001", "age": -1})
	assert.False(t, valid)
	assert.Contains(t, msg, "age")

	valid, msg = v.Validate(types.OutputRow{"id": "001"})
	assert.False(t, valid)
	assert.NotEmpty(t, msg)
}

func TestCompile_OptionalFields(t *testing.T) {
	dir := writeSchema(t)
	v, err := Compile("subject.json", dir, []string{"age"})
	require.NoError(t, err)

	valid, msg := v.Validate(types.OutputRow{"id": "001"})
	assert.True(t, valid, "age was made optional: %s", msg)
}

func TestCompile_OptionalFieldsInBranches(t *testing.T) {
	schema := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"dose": {"type": "number"},
			"text": {"type": "string"}
		},
		"oneOf": [
			{"required": ["id", "dose"]},
			{"required": ["id", "text"]}
		]
	}`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "obs.json"), []byte(schema), 0o644))

	v, err := Compile("obs.json", dir, []string{"dose", "text"})
	require.NoError(t, err)

	valid, msg := v.Validate(types.OutputRow{"id": "001"})
	assert.True(t, valid, "branch requirements were relaxed: %s", msg)
}

func TestValidate_DateFormatEnforced(t *testing.T) {
	dir := writeSchema(t)
	v, err := Compile("subject.json", dir, nil)
	require.NoError(t, err)

	valid, msg := v.Validate(types.OutputRow{"id": "001", "age": 1, "enrolment_date": "05/07/2023"})
	assert.False(t, valid)
	assert.Contains(t, msg, "enrolment_date")
}

func TestCompile_MissingSchema(t *testing.T) {
	_, err := Compile("nope.json", t.TempDir(), nil)
	assert.Error(t, err)
}

func TestDateFields(t *testing.T) {
	dir := writeSchema(t)
	v, err := Compile("subject.json", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"enrolment_date"}, v.DateFields())
}
