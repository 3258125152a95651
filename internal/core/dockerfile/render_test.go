package dockerfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokerbuild/stoker/internal/core/recipe"
)

func testRecipe() recipe.Recipe {
	r, err := recipe.Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`)
	if err != nil {
		panic(err)
	}
	return *r
}

// =============================================================================
// Render Tests
// =============================================================================

func TestRender_FullOutput(t *testing.T) {
	got := Render(testRecipe())

	want := `FROM python:3.9-alpine

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

EXPOSE 80
CMD ["python", "main.py"]
`
	assert.Equal(t, want, got)
}

func TestRender_Deterministic(t *testing.T) {
	r := testRecipe()
	first := Render(r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Render(r))
	}
}

func TestRender_StepOrder(t *testing.T) {
	out := Render(testRecipe())

	from := strings.Index(out, "FROM ")
	workdir := strings.Index(out, "WORKDIR ")
	copyManifest := strings.Index(out, "COPY requirements.txt .")
	install := strings.Index(out, "RUN pip install")
	copySource := strings.Index(out, "COPY . .")
	expose := strings.Index(out, "EXPOSE ")
	cmd := strings.Index(out, "CMD ")

	require.NotEqual(t, -1, from)
	require.NotEqual(t, -1, copyManifest)
	require.NotEqual(t, -1, copySource)

	// Base selection, dependency install, source copy, launch declaration.
	assert.Less(t, from, workdir)
	assert.Less(t, workdir, copyManifest)
	assert.Less(t, copyManifest, install)
	assert.Less(t, install, copySource)
	assert.Less(t, copySource, expose)
	assert.Less(t, expose, cmd)
}

func TestRender_CacheEnabled(t *testing.T) {
	r := testRecipe()
	r.Dependencies.Cache = true

	out := Render(r)
	assert.Contains(t, out, "RUN pip install -r requirements.txt")
	assert.NotContains(t, out, "--no-cache-dir")
}

func TestRender_CacheDisabledByDefault(t *testing.T) {
	out := Render(testRecipe())
	assert.Contains(t, out, "RUN pip install --no-cache-dir -r requirements.txt")
}

func TestRender_CustomManifest(t *testing.T) {
	r := testRecipe()
	r.Dependencies.Manifest = "deps/requirements-prod.txt"

	out := Render(r)
	assert.Contains(t, out, "COPY deps/requirements-prod.txt .")
	assert.Contains(t, out, "-r deps/requirements-prod.txt")
}

func TestRender_CommandExecForm(t *testing.T) {
	r := testRecipe()
	r.Command = []string{"gunicorn", "--bind", "0.0.0.0:80", "app:server"}

	out := Render(r)
	assert.Contains(t, out, `CMD ["gunicorn", "--bind", "0.0.0.0:80", "app:server"]`)
}

func TestRender_CommandEscaping(t *testing.T) {
	r := testRecipe()
	r.Command = []string{"sh", "-c", `echo "hi\there"`}

	out := Render(r)
	assert.Contains(t, out, `CMD ["sh", "-c", "echo \"hi\\there\""]`)
}
