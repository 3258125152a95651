package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCompose_ValidRecipe(t *testing.T) {
	r, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	out, err := ExportCompose(*r, "web-app:bld_1a2b3c4d")
	require.NoError(t, err)

	assert.Contains(t, out, "web-app:")
	assert.Contains(t, out, "image: web-app:bld_1a2b3c4d")
	assert.Contains(t, out, "python")
	assert.Contains(t, out, "main.py")
	assert.Contains(t, out, "80")
}

func TestExportCompose_MissingImageRef(t *testing.T) {
	r, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	_, err = ExportCompose(*r, "")
	assert.Error(t, err)
}

func TestExportCompose_InvalidRecipe(t *testing.T) {
	var r Recipe
	_, err := ExportCompose(r, "web-app:bld_1a2b3c4d")
	assert.Error(t, err)
}

func TestExportCompose_Deterministic(t *testing.T) {
	r, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	out1, err := ExportCompose(*r, "web-app:bld_1a2b3c4d")
	require.NoError(t, err)
	out2, err := ExportCompose(*r, "web-app:bld_1a2b3c4d")
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
}
