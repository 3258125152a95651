// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrRecipeNameRequired is returned when a build has no recipe name.
	ErrRecipeNameRequired = errors.New("recipe name is required")

	// ErrRecipeDigestRequired is returned when a build has no recipe digest.
	ErrRecipeDigestRequired = errors.New("recipe digest is required")

	// ErrInvalidTransition is returned for a disallowed status transition.
	ErrInvalidTransition = errors.New("invalid build status transition")
)

// =============================================================================
// Build Status
// =============================================================================

// BuildStatus represents the lifecycle state of a build.
// Builds are single-pass: a failed build is never retried, it is replaced
// by a new build record.
type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildRunning   BuildStatus = "building"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// IsValid checks if the status is a known build status.
func (s BuildStatus) IsValid() bool {
	switch s {
	case BuildPending, BuildRunning, BuildSucceeded, BuildFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildSucceeded || s == BuildFailed
}

// CanTransition reports whether a build may move from s to next.
//
// Valid transitions:
//   - pending → building
//   - pending → failed (validation failed before any Docker call)
//   - building → succeeded
//   - building → failed
func (s BuildStatus) CanTransition(next BuildStatus) bool {
	switch s {
	case BuildPending:
		return next == BuildRunning || next == BuildFailed
	case BuildRunning:
		return next == BuildSucceeded || next == BuildFailed
	default:
		return false
	}
}

// =============================================================================
// Build
// =============================================================================

// Build is the ledger record for one image build.
// RecipeDigest and SourceDigest together identify the build inputs: two builds
// with equal digests are expected to produce equivalent images.
type Build struct {
	ID           int         `json:"-" db:"id"`
	ReferenceID  string      `json:"id" db:"reference_id"`
	RecipeName   string      `json:"recipe_name" db:"recipe_name"`
	RecipeDigest string      `json:"recipe_digest" db:"recipe_digest"`
	SourceDigest string      `json:"source_digest" db:"source_digest"`
	ImageRef     string      `json:"image_ref,omitempty" db:"image_ref"`
	ImageID      string      `json:"image_id,omitempty" db:"image_id"`
	Status       BuildStatus `json:"status" db:"status"`
	Error        string      `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
}

// NewBuild creates a pending build record for the given recipe.
// Returns an error if required fields are missing.
func NewBuild(recipeName, recipeDigest, sourceDigest string) (*Build, error) {
	if recipeName == "" {
		return nil, ErrRecipeNameRequired
	}
	if recipeDigest == "" {
		return nil, ErrRecipeDigestRequired
	}

	return &Build{
		ReferenceID:  "bld_" + uuid.New().String()[:8],
		RecipeName:   recipeName,
		RecipeDigest: recipeDigest,
		SourceDigest: sourceDigest,
		Status:       BuildPending,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Transition moves the build to the next status, stamping FinishedAt on
// terminal states. Returns ErrInvalidTransition for disallowed moves.
func (b *Build) Transition(next BuildStatus) error {
	if !b.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	b.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		b.FinishedAt = &now
	}
	return nil
}

// Fail marks the build failed with the given diagnostic.
func (b *Build) Fail(message string) error {
	if err := b.Transition(BuildFailed); err != nil {
		return err
	}
	b.Error = message
	return nil
}

// Succeed marks the build succeeded and records the produced image.
func (b *Build) Succeed(imageRef, imageID string) error {
	if err := b.Transition(BuildSucceeded); err != nil {
		return err
	}
	b.ImageRef = imageRef
	b.ImageID = imageID
	return nil
}
