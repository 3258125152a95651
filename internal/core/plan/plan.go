// Package plan models the fixed build-step sequence.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// A build is four steps, executed exactly once each, in a fixed order, with
// no branching and no retry. The plan exists so the ordering invariants can
// be checked before any Docker API call is made.
package plan

import (
	"github.com/stokerbuild/stoker/internal/core/recipe"
)

// =============================================================================
// Step Types
// =============================================================================

// StepKind identifies one of the four build steps.
type StepKind string

const (
	// StepSelectBase pins the immutable base environment.
	StepSelectBase StepKind = "select-base"

	// StepInstallDeps materializes the manifest and installs packages.
	StepInstallDeps StepKind = "install-deps"

	// StepCopySource copies the full source tree into the working directory.
	StepCopySource StepKind = "copy-source"

	// StepDeclareLaunch records the exposed port and launch command.
	StepDeclareLaunch StepKind = "declare-launch"
)

// Step is one build step with its resolved inputs.
type Step struct {
	Kind        StepKind
	Description string
}

// Plan is the ordered step sequence for one recipe.
type Plan struct {
	Recipe recipe.Recipe
	Steps  []Step
}

// =============================================================================
// Plan Construction
// =============================================================================

// FromRecipe builds the four-step plan for a recipe. The order never varies.
func FromRecipe(r recipe.Recipe) Plan {
	return Plan{
		Recipe: r,
		Steps: []Step{
			{Kind: StepSelectBase, Description: "select base " + r.Base.Ref()},
			{Kind: StepInstallDeps, Description: "install dependencies from " + r.Dependencies.Manifest},
			{Kind: StepCopySource, Description: "copy source tree " + r.Source.Path},
			{Kind: StepDeclareLaunch, Description: "declare port and launch command"},
		},
	}
}

// =============================================================================
// Validation
// =============================================================================

// Inputs describes what exists on disk when the build starts.
type Inputs struct {
	// SourceExists reports whether the source tree root exists.
	SourceExists bool

	// ManifestExists reports whether the dependency manifest exists inside
	// the source tree.
	ManifestExists bool
}

// Result is the outcome of validating a plan against its inputs.
type Result struct {
	// Valid indicates whether the build can proceed.
	Valid bool

	// FailedStep is the step that cannot run. Zero value if Valid.
	FailedStep StepKind

	// ErrorReason contains the reason the build is not allowed.
	// Empty if Valid is true.
	ErrorReason string
}

// ValidateOrder checks the structural invariant that the install step comes
// after the base selection and before source materialization. A hand-built
// plan with a different order is rejected.
func ValidateOrder(p Plan) Result {
	expected := []StepKind{StepSelectBase, StepInstallDeps, StepCopySource, StepDeclareLaunch}
	if len(p.Steps) != len(expected) {
		return Result{
			Valid:       false,
			ErrorReason: "plan must have exactly four steps",
		}
	}
	for i, kind := range expected {
		if p.Steps[i].Kind != kind {
			return Result{
				Valid:       false,
				FailedStep:  p.Steps[i].Kind,
				ErrorReason: "step out of order: " + string(p.Steps[i].Kind),
			}
		}
	}
	return Result{Valid: true}
}

// ValidateInputs checks that the build inputs exist. A missing manifest fails
// the install step here, before source materialization ever runs; a missing
// source tree fails the copy step.
func ValidateInputs(p Plan, inputs Inputs) Result {
	if order := ValidateOrder(p); !order.Valid {
		return order
	}

	if !inputs.SourceExists {
		return Result{
			Valid:       false,
			FailedStep:  StepCopySource,
			ErrorReason: "source path does not exist: " + p.Recipe.Source.Path,
		}
	}

	if !inputs.ManifestExists {
		return Result{
			Valid:       false,
			FailedStep:  StepInstallDeps,
			ErrorReason: "dependency manifest not found: " + p.Recipe.Dependencies.Manifest,
		}
	}

	return Result{Valid: true}
}
