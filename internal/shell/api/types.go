package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// CreateBuildRequest is the request body for submitting a build.
type CreateBuildRequest struct {
	// Recipe is the recipe YAML, exactly as it would appear in stoker.yaml.
	Recipe string `json:"recipe"`

	// BaseDir resolves a relative source path in the recipe. Defaults to the
	// server's working directory.
	BaseDir string `json:"base_dir,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// BuildResponse is the response for build operations.
type BuildResponse struct {
	ID           string     `json:"id"`
	RecipeName   string     `json:"recipe_name"`
	RecipeDigest string     `json:"recipe_digest"`
	SourceDigest string     `json:"source_digest"`
	ImageRef     string     `json:"image_ref,omitempty"`
	ImageID      string     `json:"image_id,omitempty"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// ListBuildsResponse is the response for listing builds.
type ListBuildsResponse struct {
	Builds []BuildResponse `json:"builds"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// HealthResponse is the response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
