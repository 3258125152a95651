// Package dockerfile renders a Dockerfile from a recipe.
// This is part of the Functional Core - rendering is pure and deterministic:
// the same recipe always produces byte-identical output.
package dockerfile

import (
	"strconv"
	"strings"

	"github.com/stokerbuild/stoker/internal/core/recipe"
)

// Name is the filename the build context uses for the rendered Dockerfile.
const Name = "Dockerfile"

// Render produces the four-step Dockerfile for a recipe.
//
// The step order is fixed and load-bearing: the manifest is copied into the
// working directory before the install step reads it, and the full source
// copy comes after the install so dependency layers survive source-only
// rebuilds.
func Render(r recipe.Recipe) string {
	var b strings.Builder

	// Step 1: base environment selection.
	b.WriteString("FROM ")
	b.WriteString(r.Base.Ref())
	b.WriteString("\n\n")

	b.WriteString("WORKDIR ")
	b.WriteString(r.Workdir)
	b.WriteString("\n\n")

	// Step 2: dependency installation. The manifest must be present in the
	// working directory before pip reads it.
	b.WriteString("COPY ")
	b.WriteString(r.Dependencies.Manifest)
	b.WriteString(" .\n")
	b.WriteString("RUN pip install ")
	if !r.Dependencies.Cache {
		b.WriteString("--no-cache-dir ")
	}
	b.WriteString("-r ")
	b.WriteString(r.Dependencies.Manifest)
	b.WriteString("\n\n")

	// Step 3: source materialization. The whole tree, no exclusions.
	b.WriteString("COPY . .\n\n")

	// Step 4: launch declaration. EXPOSE is metadata only; CMD is exec form
	// so the argument list reaches the process verbatim.
	b.WriteString("EXPOSE ")
	b.WriteString(strconv.Itoa(r.Port))
	b.WriteString("\n")
	b.WriteString("CMD ")
	b.WriteString(execForm(r.Command))
	b.WriteString("\n")

	return b.String()
}

// execForm renders a command as a JSON array literal, e.g. ["python", "main.py"].
func execForm(command []string) string {
	parts := make([]string, len(command))
	for i, arg := range command {
		parts[i] = `"` + escape(arg) + `"`
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
