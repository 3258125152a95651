package recipe

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser
// =============================================================================

var nameRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Parse parses recipe YAML into a validated Recipe.
// This is a pure function - no I/O, no side effects.
// Input: raw YAML string
// Output: Recipe with defaults applied, or the first validation error
func Parse(yamlContent string) (*Recipe, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	var r Recipe
	dec := yaml.NewDecoder(strings.NewReader(yamlContent))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}

	r = r.withDefaults()
	if err := Validate(r); err != nil {
		return nil, err
	}

	return &r, nil
}

// Validate checks every recipe invariant. Pure.
func Validate(r Recipe) error {
	if r.Name == "" {
		return NewParseError("name", "name is required", ErrNameRequired)
	}
	if !nameRegex.MatchString(r.Name) {
		return NewParseError("name", "must be lowercase alphanumeric with hyphens", ErrNameInvalid)
	}

	if r.Base.Image == "" {
		return NewParseError("base.image", "base image is required", ErrBaseImageRequired)
	}
	if err := ValidateBaseTag(r.Base.Tag); err != nil {
		return NewParseError("base.tag", "tag must be pinned", err)
	}

	if !strings.HasPrefix(r.Workdir, "/") {
		return NewParseError("workdir", "must be an absolute path", ErrWorkdirNotAbsolute)
	}

	if err := ValidateManifestPath(r.Dependencies.Manifest); err != nil {
		return NewParseError("dependencies.manifest", "must stay inside the source tree", err)
	}

	if r.Port < 1 || r.Port > 65535 {
		return NewParseError("port", "must be between 1 and 65535", ErrPortInvalid)
	}

	if len(r.Command) == 0 {
		return NewParseError("command", "command is required", ErrCommandRequired)
	}
	for _, arg := range r.Command {
		if arg == "" {
			return NewParseError("command", "arguments must be non-empty", ErrCommandArgEmpty)
		}
	}

	return nil
}

// ValidateBaseTag rejects floating tags. Reproducible builds need the base
// filesystem to be the same one every time.
func ValidateBaseTag(tag string) error {
	if tag == "" || tag == "latest" {
		return ErrBaseTagUnpinned
	}
	return nil
}

// ValidateManifestPath ensures the manifest is a relative path that does not
// escape the source root.
func ValidateManifestPath(manifest string) error {
	if manifest == "" || strings.HasPrefix(manifest, "/") {
		return ErrManifestPathInvalid
	}
	clean := path.Clean(manifest)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrManifestPathInvalid
	}
	return nil
}

// =============================================================================
// Digest
// =============================================================================

// Digest returns a stable sha256 over the canonical form of the recipe.
// Two recipes that normalize to the same declaration share a digest, so the
// ledger can tell whether a rebuild used identical inputs.
func Digest(r Recipe) string {
	canonical := r.withDefaults()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	// Encoding a fixed struct is deterministic; field order follows the type.
	_ = enc.Encode(canonical)
	_ = enc.Close()

	sum := sha256.Sum256(buf.Bytes())
	return "sha256:" + hex.EncodeToString(sum[:])
}
