// Package builder runs the build-and-launch pipeline: it executes the four
// build steps strictly in order against a Docker daemon and records every
// outcome in the build ledger.
//
// Failure policy is fail-fast throughout: the first error aborts the whole
// build, is recorded on the ledger entry, and nothing is retried.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stokerbuild/stoker/internal/core/domain"
	"github.com/stokerbuild/stoker/internal/core/dockerfile"
	"github.com/stokerbuild/stoker/internal/core/plan"
	"github.com/stokerbuild/stoker/internal/core/recipe"
	"github.com/stokerbuild/stoker/internal/shell/buildctx"
	"github.com/stokerbuild/stoker/internal/shell/docker"
	"github.com/stokerbuild/stoker/internal/shell/store"
)

// =============================================================================
// Builder
// =============================================================================

// Options configures a Builder.
type Options struct {
	// RegistryAuth is the encoded credential for base image pulls from
	// private registries. Empty for anonymous pulls.
	RegistryAuth string

	// Platform selects the build platform, e.g. "linux/amd64". Empty uses
	// the daemon default.
	Platform string
}

// Builder executes builds against one Docker daemon.
type Builder struct {
	docker docker.Client
	store  store.Store
	logger *slog.Logger
	opts   Options
}

// New creates a Builder.
func New(dockerClient docker.Client, ledger store.Store, logger *slog.Logger, opts Options) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		docker: dockerClient,
		store:  ledger,
		logger: logger,
		opts:   opts,
	}
}

// =============================================================================
// Build
// =============================================================================

// Run executes one build of the recipe, with the source tree resolved
// relative to baseDir. It returns the finished ledger record; on failure the
// record is returned alongside the error so callers can report the reference
// ID of the failed build.
func (b *Builder) Run(ctx context.Context, r recipe.Recipe, baseDir string) (*domain.Build, error) {
	sourceRoot := r.Source.Path
	if !filepath.IsAbs(sourceRoot) {
		sourceRoot = filepath.Join(baseDir, sourceRoot)
	}

	// Validate inputs before any Docker call. A missing manifest must fail
	// the build before source materialization ever starts.
	p := plan.FromRecipe(r)
	inputs := plan.Inputs{
		SourceExists:   pathExists(sourceRoot),
		ManifestExists: pathExists(filepath.Join(sourceRoot, filepath.FromSlash(r.Dependencies.Manifest))),
	}

	sourceDigest := ""
	if inputs.SourceExists {
		var err error
		sourceDigest, err = buildctx.Digest(sourceRoot)
		if err != nil {
			return nil, fmt.Errorf("digest source tree: %w", err)
		}
	}

	record, err := domain.NewBuild(r.Name, recipe.Digest(r), sourceDigest)
	if err != nil {
		return nil, err
	}
	if err := b.store.CreateBuild(ctx, record); err != nil {
		return nil, err
	}

	if result := plan.ValidateInputs(p, inputs); !result.Valid {
		return b.fail(ctx, record, fmt.Errorf("%s: %s", result.FailedStep, result.ErrorReason))
	}

	// Identical inputs mean the rebuild is expected to reproduce the
	// previous image exactly.
	if prev, err := b.store.FindByDigests(ctx, record.RecipeDigest, record.SourceDigest); err == nil {
		b.logger.Info("inputs identical to previous build",
			"build_id", record.ReferenceID,
			"previous_build_id", prev.ReferenceID,
			"image_ref", prev.ImageRef,
		)
	}

	if err := record.Transition(domain.BuildRunning); err != nil {
		return nil, err
	}
	if err := b.store.UpdateBuild(ctx, record); err != nil {
		return nil, err
	}

	b.logger.Info("starting build",
		"build_id", record.ReferenceID,
		"recipe", r.Name,
		"base", r.Base.Ref(),
	)

	// Step 1: select base environment. An unresolvable reference is fatal
	// and not retried.
	if err := b.ensureBaseImage(r.Base.Ref()); err != nil {
		return b.fail(ctx, record, err)
	}

	// Steps 2-4 are executed by the daemon from the rendered Dockerfile:
	// manifest copy + install, full source copy, port and command metadata.
	rendered := dockerfile.Render(r)
	contextTar, err := buildctx.Tar(sourceRoot, map[string][]byte{
		dockerfile.Name: []byte(rendered),
	})
	if err != nil {
		return b.fail(ctx, record, fmt.Errorf("materialize build context: %w", err))
	}
	defer contextTar.Close()

	tag := fmt.Sprintf("%s:%s", r.Name, record.ReferenceID)
	imageID, err := b.docker.BuildImage(docker.BuildSpec{
		Tag:        tag,
		Context:    contextTar,
		Dockerfile: dockerfile.Name,
		Labels: map[string]string{
			docker.LabelManaged: "true",
			docker.LabelBuild:   record.ReferenceID,
			docker.LabelRecipe:  r.Name,
		},
	})
	if err != nil {
		return b.fail(ctx, record, err)
	}

	// The built image must carry the contract it was declared with.
	if err := b.VerifyImage(tag, r); err != nil {
		return b.fail(ctx, record, err)
	}

	if err := record.Succeed(tag, imageID); err != nil {
		return nil, err
	}
	if err := b.store.UpdateBuild(ctx, record); err != nil {
		return nil, err
	}

	b.logger.Info("build succeeded",
		"build_id", record.ReferenceID,
		"image_ref", tag,
		"image_id", imageID,
	)

	return record, nil
}

// ensureBaseImage pulls the pinned base if it is not already present.
func (b *Builder) ensureBaseImage(ref string) error {
	exists, err := b.docker.ImageExists(ref)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	b.logger.Info("pulling base image", "image", ref)
	return b.docker.PullImage(ref, docker.PullOptions{
		Platform:     b.opts.Platform,
		RegistryAuth: b.opts.RegistryAuth,
	})
}

// fail records the failure on the ledger entry and returns the original error.
func (b *Builder) fail(ctx context.Context, record *domain.Build, cause error) (*domain.Build, error) {
	b.logger.Error("build failed",
		"build_id", record.ReferenceID,
		"error", cause,
	)

	if ferr := record.Fail(cause.Error()); ferr != nil {
		return record, errors.Join(cause, ferr)
	}
	if uerr := b.store.UpdateBuild(ctx, record); uerr != nil {
		return record, errors.Join(cause, uerr)
	}
	return record, cause
}

// =============================================================================
// Launch
// =============================================================================

// LaunchOptions configures launching a built image.
type LaunchOptions struct {
	// HostPort publishes the declared container port on this host port.
	// Zero leaves the port unpublished (EXPOSE stays metadata).
	HostPort int
}

// Launch creates and starts one container from a succeeded build. The image's
// recorded CMD is used untouched; this layer adds no restart policy, health
// check, or shutdown handling.
func (b *Builder) Launch(ctx context.Context, record *domain.Build, r recipe.Recipe, opts LaunchOptions) (string, error) {
	if record.Status != domain.BuildSucceeded {
		return "", fmt.Errorf("cannot launch build %s: status is %s", record.ReferenceID, record.Status)
	}

	spec := docker.ContainerSpec{
		Name:  fmt.Sprintf("%s-%s", r.Name, record.ReferenceID),
		Image: record.ImageRef,
		Labels: map[string]string{
			docker.LabelManaged: "true",
			docker.LabelBuild:   record.ReferenceID,
			docker.LabelRecipe:  r.Name,
		},
	}
	if opts.HostPort != 0 {
		spec.Ports = []docker.PortBinding{
			{ContainerPort: r.Port, HostPort: opts.HostPort, Protocol: "tcp"},
		}
	}

	containerID, err := b.docker.CreateContainer(spec)
	if err != nil {
		return "", err
	}

	if err := b.docker.StartContainer(containerID); err != nil {
		// Leave the created container in place for inspection; starting is
		// the last step and there is no retry.
		return containerID, err
	}

	b.logger.Info("launched container",
		"build_id", record.ReferenceID,
		"container_id", containerID,
		"host_port", opts.HostPort,
	)

	return containerID, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
