package recipe

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrEmptyInput is returned when the recipe content is empty.
	ErrEmptyInput = errors.New("recipe is empty")

	// ErrInvalidYAML is returned when the recipe is not valid YAML.
	ErrInvalidYAML = errors.New("recipe is not valid YAML")

	// ErrNameRequired is returned when the recipe has no name.
	ErrNameRequired = errors.New("recipe name is required")

	// ErrNameInvalid is returned when the name is not a valid slug.
	ErrNameInvalid = errors.New("recipe name must be lowercase alphanumeric with hyphens")

	// ErrBaseImageRequired is returned when no base image is given.
	ErrBaseImageRequired = errors.New("base image is required")

	// ErrBaseTagUnpinned is returned when the base tag is missing or floating.
	ErrBaseTagUnpinned = errors.New("base tag must be pinned (empty and \"latest\" are not reproducible)")

	// ErrWorkdirNotAbsolute is returned when the workdir is not an absolute path.
	ErrWorkdirNotAbsolute = errors.New("workdir must be an absolute path")

	// ErrManifestPathInvalid is returned when the manifest path escapes the source root.
	ErrManifestPathInvalid = errors.New("dependency manifest must be a relative path inside the source tree")

	// ErrPortInvalid is returned when the port is outside [1, 65535].
	ErrPortInvalid = errors.New("port must be between 1 and 65535")

	// ErrCommandRequired is returned when the launch command is empty.
	ErrCommandRequired = errors.New("launch command is required")

	// ErrCommandArgEmpty is returned when a command argument is an empty string.
	ErrCommandArgEmpty = errors.New("launch command arguments must be non-empty")
)

// ParseError wraps validation errors with the recipe field that failed.
type ParseError struct {
	Field   string // Recipe field path, e.g. "base.tag"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("recipe field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("recipe: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
