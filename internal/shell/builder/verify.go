package builder

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stokerbuild/stoker/internal/core/recipe"
	"github.com/stokerbuild/stoker/internal/shell/docker"
)

// =============================================================================
// Image Contract Verification
// =============================================================================

var (
	// ErrPortMismatch is returned when the image's declared ports differ from
	// the recipe.
	ErrPortMismatch = errors.New("image does not declare the recipe port")

	// ErrCommandMismatch is returned when the image's command differs from
	// the recipe.
	ErrCommandMismatch = errors.New("image command does not match the recipe")

	// ErrEntrypointPresent is returned when the image declares an entrypoint.
	ErrEntrypointPresent = errors.New("image declares an entrypoint ahead of the command")
)

// VerifyImage inspects a built image and checks the launch contract:
// exactly one declared port matching the recipe, and a CMD identical to the
// recipe command with nothing injected.
func (b *Builder) VerifyImage(imageRef string, r recipe.Recipe) error {
	info, err := b.docker.InspectImage(imageRef)
	if err != nil {
		return err
	}
	return CheckContract(info, r)
}

// CheckContract validates an inspected image against its recipe. Pure.
//
// An entrypoint fails verification even when CMD matches: the runtime would
// prepend it to the declared command, so arguments the recipe never declared
// reach the process.
func CheckContract(info *docker.ImageInfo, r recipe.Recipe) error {
	want := strconv.Itoa(r.Port) + "/tcp"
	if len(info.ExposedPorts) != 1 || info.ExposedPorts[0] != want {
		return fmt.Errorf("%w: want [%s], image has %v", ErrPortMismatch, want, info.ExposedPorts)
	}

	if len(info.Entrypoint) != 0 {
		return fmt.Errorf("%w: %v", ErrEntrypointPresent, info.Entrypoint)
	}

	if len(info.Cmd) != len(r.Command) {
		return fmt.Errorf("%w: want %v, image has %v", ErrCommandMismatch, r.Command, info.Cmd)
	}
	for i, arg := range r.Command {
		if info.Cmd[i] != arg {
			return fmt.Errorf("%w: want %v, image has %v", ErrCommandMismatch, r.Command, info.Cmd)
		}
	}

	return nil
}
