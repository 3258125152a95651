package recipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecipeYAML = `
name: web-app
base:
  image: python
  tag: "3.9-alpine"
workdir: /app
dependencies:
  manifest: requirements.txt
source:
  path: .
port: 80
command: ["python", "main.py"]
`

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_ValidRecipe(t *testing.T) {
	r, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	assert.Equal(t, "web-app", r.Name)
	assert.Equal(t, "python", r.Base.Image)
	assert.Equal(t, "3.9-alpine", r.Base.Tag)
	assert.Equal(t, "python:3.9-alpine", r.Base.Ref())
	assert.Equal(t, "/app", r.Workdir)
	assert.Equal(t, "requirements.txt", r.Dependencies.Manifest)
	assert.False(t, r.Dependencies.Cache)
	assert.Equal(t, ".", r.Source.Path)
	assert.Equal(t, 80, r.Port)
	assert.Equal(t, []string{"python", "main.py"}, r.Command)
}

func TestParse_AppliesDefaults(t *testing.T) {
	r, err := Parse(`
name: minimal
base:
  image: python
  tag: "3.9-alpine"
port: 8080
command: ["python", "serve.py"]
`)
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkdir, r.Workdir)
	assert.Equal(t, DefaultManifest, r.Dependencies.Manifest)
	assert.Equal(t, DefaultSourcePath, r.Source.Path)
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Parse("   \n\t  ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse("name: [unclosed")
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
volumes:
  - /data
`)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_MissingName(t *testing.T) {
	_, err := Parse(`
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestParse_InvalidName(t *testing.T) {
	for _, name := range []string{"Web-App", "web_app", "web app", "-web", "web-"} {
		_, err := Parse(`
name: "` + name + `"
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`)
		assert.ErrorIs(t, err, ErrNameInvalid, "name %q should be rejected", name)
	}
}

func TestParse_MissingBaseImage(t *testing.T) {
	_, err := Parse(`
name: web-app
port: 80
command: ["python", "main.py"]
`)
	assert.ErrorIs(t, err, ErrBaseImageRequired)
}

func TestParse_UnpinnedBaseTag(t *testing.T) {
	for _, tag := range []string{"", "latest"} {
		_, err := Parse(`
name: web-app
base:
  image: python
  tag: "` + tag + `"
port: 80
command: ["python", "main.py"]
`)
		assert.ErrorIs(t, err, ErrBaseTagUnpinned, "tag %q should be rejected", tag)
	}
}

func TestParse_RelativeWorkdir(t *testing.T) {
	_, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
workdir: app
port: 80
command: ["python", "main.py"]
`)
	assert.ErrorIs(t, err, ErrWorkdirNotAbsolute)
}

func TestParse_InvalidPort(t *testing.T) {
	for _, port := range []string{"0", "-1", "65536"} {
		_, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: ` + port + `
command: ["python", "main.py"]
`)
		assert.ErrorIs(t, err, ErrPortInvalid, "port %s should be rejected", port)
	}
}

func TestParse_MissingCommand(t *testing.T) {
	_, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
`)
	assert.ErrorIs(t, err, ErrCommandRequired)
}

func TestParse_EmptyCommandArg(t *testing.T) {
	_, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", ""]
`)
	assert.ErrorIs(t, err, ErrCommandArgEmpty)
}

func TestParse_ErrorCarriesField(t *testing.T) {
	_, err := Parse(`
name: web-app
base:
  image: python
  tag: latest
port: 80
command: ["python", "main.py"]
`)
	require.Error(t, err)

	var pErr *ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "base.tag", pErr.Field)
	assert.Contains(t, pErr.Error(), "base.tag")
}

// =============================================================================
// Manifest Path Tests
// =============================================================================

func TestValidateManifestPath(t *testing.T) {
	assert.NoError(t, ValidateManifestPath("requirements.txt"))
	assert.NoError(t, ValidateManifestPath("deps/requirements.txt"))

	assert.ErrorIs(t, ValidateManifestPath(""), ErrManifestPathInvalid)
	assert.ErrorIs(t, ValidateManifestPath("/etc/passwd"), ErrManifestPathInvalid)
	assert.ErrorIs(t, ValidateManifestPath("../requirements.txt"), ErrManifestPathInvalid)
	assert.ErrorIs(t, ValidateManifestPath("deps/../../requirements.txt"), ErrManifestPathInvalid)
}

// =============================================================================
// Digest Tests
// =============================================================================

func TestDigest_Deterministic(t *testing.T) {
	r1, err := Parse(validRecipeYAML)
	require.NoError(t, err)
	r2, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	d1 := Digest(*r1)
	d2 := Digest(*r2)
	assert.Equal(t, d1, d2)
	assert.Contains(t, d1, "sha256:")
}

func TestDigest_DefaultsNormalize(t *testing.T) {
	explicit, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
workdir: /app
dependencies:
  manifest: requirements.txt
source:
  path: .
port: 80
command: ["python", "main.py"]
`)
	require.NoError(t, err)

	implicit, err := Parse(`
name: web-app
base:
  image: python
  tag: "3.9-alpine"
port: 80
command: ["python", "main.py"]
`)
	require.NoError(t, err)

	assert.Equal(t, Digest(*explicit), Digest(*implicit))
}

func TestDigest_ChangesWithContent(t *testing.T) {
	r1, err := Parse(validRecipeYAML)
	require.NoError(t, err)

	r2 := *r1
	r2.Port = 8080

	assert.NotEqual(t, Digest(*r1), Digest(r2))
}
