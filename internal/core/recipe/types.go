// Package recipe parses and validates stoker build recipes.
// This is part of the Functional Core - parsing and validation are pure,
// no I/O happens here.
package recipe

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultWorkdir is the working directory used when the recipe omits one.
	DefaultWorkdir = "/app"

	// DefaultManifest is the dependency manifest used when the recipe omits one.
	DefaultManifest = "requirements.txt"

	// DefaultSourcePath is the source tree root used when the recipe omits one.
	DefaultSourcePath = "."
)

// =============================================================================
// Recipe Types
// =============================================================================

// Recipe is the declarative build-and-launch descriptor. It is parsed once,
// validated, and never mutated afterwards.
type Recipe struct {
	// Name identifies the recipe; it becomes part of the image reference.
	Name string `yaml:"name"`

	// Base is the pinned base environment the build starts from.
	Base Base `yaml:"base"`

	// Workdir is the absolute working directory inside the image.
	Workdir string `yaml:"workdir"`

	// Dependencies describes the dependency manifest and install policy.
	Dependencies Dependencies `yaml:"dependencies"`

	// Source describes the source tree copied into the image.
	Source Source `yaml:"source"`

	// Port is the single network port the launched process intends to bind.
	// Declarative metadata only: recording it does not bind a socket.
	Port int `yaml:"port"`

	// Command is the exact process invocation, exec form. It is passed through
	// verbatim; no arguments are injected.
	Command []string `yaml:"command"`
}

// Base identifies the immutable starting environment.
type Base struct {
	Image string `yaml:"image"`
	// Tag must be pinned. "latest" (or an empty tag, which means latest)
	// is rejected so that rebuilds start from the same filesystem.
	Tag string `yaml:"tag"`
}

// Ref returns the full image reference, e.g. "python:3.9-alpine".
func (b Base) Ref() string {
	return b.Image + ":" + b.Tag
}

// Dependencies describes the install step.
type Dependencies struct {
	// Manifest is the path of the manifest file, relative to the source root.
	Manifest string `yaml:"manifest"`

	// Cache controls whether the installer keeps its download cache in the
	// image. Off by default: smaller images, slower rebuilds.
	Cache bool `yaml:"cache"`
}

// Source describes the tree materialized into the image. The whole tree is
// copied; there is no ignore mechanism.
type Source struct {
	Path string `yaml:"path"`
}

// =============================================================================
// Normalization
// =============================================================================

// withDefaults returns a copy of the recipe with omitted fields filled in.
func (r Recipe) withDefaults() Recipe {
	if r.Workdir == "" {
		r.Workdir = DefaultWorkdir
	}
	if r.Dependencies.Manifest == "" {
		r.Dependencies.Manifest = DefaultManifest
	}
	if r.Source.Path == "" {
		r.Source.Path = DefaultSourcePath
	}
	return r
}
