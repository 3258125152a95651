package recipe

import (
	"fmt"

	"github.com/compose-spec/compose-go/v2/types"
)

// =============================================================================
// Compose Export
// =============================================================================

// ExportCompose renders a docker-compose project for a built image so the
// result can be handed to compose-based tooling. The service mirrors the
// launch contract exactly: the image, the declared port, and the verbatim
// command. Nothing else is added.
func ExportCompose(r Recipe, imageRef string) (string, error) {
	if imageRef == "" {
		return "", fmt.Errorf("export compose: image reference is required")
	}
	if err := Validate(r.withDefaults()); err != nil {
		return "", fmt.Errorf("export compose: %w", err)
	}

	norm := r.withDefaults()

	project := &types.Project{
		Name: norm.Name,
		Services: types.Services{
			norm.Name: types.ServiceConfig{
				Name:    norm.Name,
				Image:   imageRef,
				Command: types.ShellCommand(norm.Command),
				Ports: []types.ServicePortConfig{
					{
						Target:   uint32(norm.Port),
						Protocol: "tcp",
					},
				},
			},
		},
	}

	out, err := project.MarshalYAML()
	if err != nil {
		return "", fmt.Errorf("export compose: %w", err)
	}

	return string(out), nil
}
