package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/stokerbuild/stoker/internal/core/crypto"
	"github.com/stokerbuild/stoker/internal/core/dockerfile"
	"github.com/stokerbuild/stoker/internal/core/domain"
	"github.com/stokerbuild/stoker/internal/core/recipe"
	"github.com/stokerbuild/stoker/internal/shell/buildctx"
	"github.com/stokerbuild/stoker/internal/shell/builder"
	"github.com/stokerbuild/stoker/internal/shell/docker"
	"github.com/stokerbuild/stoker/internal/shell/store"
)

// DefaultRecipeFile is the recipe filename used when -f is not given.
const DefaultRecipeFile = "stoker.yaml"

// =============================================================================
// Shared Helpers
// =============================================================================

// loadRecipe reads and parses the recipe file.
func loadRecipe(path string) (*recipe.Recipe, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}
	return recipe.Parse(string(content))
}

// openDocker connects to the Docker daemon and verifies it is reachable.
func openDocker(cfg *Config) (docker.Client, error) {
	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// registryAuth decrypts the configured registry password, if any, and
// returns the encoded auth header for pulls.
func registryAuth(cfg *Config) (string, error) {
	reg := cfg.Registry
	if reg.PasswordEncrypted == "" {
		return "", nil
	}
	if reg.Passphrase == "" {
		return "", errors.New("registry password is encrypted but STOKER_REGISTRY_PASSPHRASE is not set")
	}

	salt := reg.Salt
	if salt == "" {
		salt = reg.Username
	}

	key, err := crypto.DeriveKey(reg.Passphrase, []byte(salt))
	if err != nil {
		return "", err
	}
	password, err := crypto.DecryptFromBase64(reg.PasswordEncrypted, key)
	if err != nil {
		return "", fmt.Errorf("decrypt registry password: %w", err)
	}

	return docker.EncodeRegistryAuth(reg.Username, string(password))
}

// newBuilder wires the builder from config. Callers close both returns.
func newBuilder(cfg *Config, logger *slog.Logger) (*builder.Builder, docker.Client, store.Store, int, error) {
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, ExitDatabaseError, err
	}

	d, err := openDocker(cfg)
	if err != nil {
		s.Close()
		return nil, nil, nil, ExitDockerError, err
	}

	auth, err := registryAuth(cfg)
	if err != nil {
		s.Close()
		d.Close()
		return nil, nil, nil, ExitConfigError, err
	}

	b := builder.New(d, s, logger, builder.Options{
		RegistryAuth: auth,
		Platform:     cfg.Build.Platform,
	})
	return b, d, s, ExitSuccess, nil
}

// resolveBuild finds the build to operate on: an explicit reference ID, or
// the latest succeeded build whose inputs match the recipe and source tree.
func resolveBuild(ctx context.Context, s store.Store, r *recipe.Recipe, baseDir, buildRef string) (*domain.Build, error) {
	if buildRef != "" {
		record, err := s.GetBuild(ctx, buildRef)
		if err != nil {
			return nil, err
		}
		if record.RecipeName != r.Name {
			return nil, fmt.Errorf("build %s was produced from recipe %q, not %q", buildRef, record.RecipeName, r.Name)
		}
		return record, nil
	}

	sourceRoot := r.Source.Path
	if !filepath.IsAbs(sourceRoot) {
		sourceRoot = filepath.Join(baseDir, sourceRoot)
	}
	sourceDigest, err := buildctx.Digest(sourceRoot)
	if err != nil {
		return nil, err
	}

	record, err := s.FindByDigests(ctx, recipe.Digest(*r), sourceDigest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.New("no succeeded build for these inputs; run `stoker build` first")
		}
		return nil, err
	}
	return record, nil
}

// =============================================================================
// render
// =============================================================================

func cmdRender(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	recipePath := fs.String("f", DefaultRecipeFile, "recipe file")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	r, err := loadRecipe(*recipePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}

	fmt.Print(dockerfile.Render(*r))
	return ExitSuccess
}

// =============================================================================
// build
// =============================================================================

func cmdBuild(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	recipePath := fs.String("f", DefaultRecipeFile, "recipe file")
	baseDir := fs.String("C", ".", "directory relative source paths resolve against")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	r, err := loadRecipe(*recipePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}

	b, d, s, code, err := newBuilder(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return code
	}
	defer d.Close()
	defer s.Close()

	record, err := b.Run(context.Background(), *r, *baseDir)
	if err != nil {
		if record != nil {
			fmt.Fprintf(os.Stderr, "build %s failed: %v\n", record.ReferenceID, err)
		} else {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		}
		return ExitBuildError
	}

	fmt.Printf("%s\t%s\n", record.ReferenceID, record.ImageRef)
	return ExitSuccess
}

// =============================================================================
// run
// =============================================================================

func cmdRun(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	recipePath := fs.String("f", DefaultRecipeFile, "recipe file")
	buildRef := fs.String("build", "", "build reference ID (default: latest build of identical inputs)")
	publish := fs.Int("publish", 0, "host port to publish the declared port on (0 = unpublished)")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	r, err := loadRecipe(*recipePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}

	b, d, s, code, err := newBuilder(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return code
	}
	defer d.Close()
	defer s.Close()

	ctx := context.Background()
	record, err := resolveBuild(ctx, s, r, ".", *buildRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitBuildError
	}

	containerID, err := b.Launch(ctx, record, *r, builder.LaunchOptions{HostPort: *publish})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}

	fmt.Println(containerID)
	return ExitSuccess
}

// =============================================================================
// stop
// =============================================================================

func cmdStop(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 10*time.Second, "stop timeout before the container is killed")
	remove := fs.Bool("rm", false, "remove the container after stopping it")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stoker stop [-rm] <container-id>")
		return ExitConfigError
	}

	d, err := openDocker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	defer d.Close()

	if err := d.StopContainer(fs.Arg(0), timeout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	if *remove {
		if err := d.RemoveContainer(fs.Arg(0), docker.RemoveOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return ExitDockerError
		}
	}
	return ExitSuccess
}

// =============================================================================
// ps
// =============================================================================

func cmdPs(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("ps", flag.ContinueOnError)
	all := fs.Bool("a", false, "include stopped containers")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	d, err := openDocker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	defer d.Close()

	containers, err := d.ListContainers(docker.ListOptions{
		All:     *all,
		Filters: map[string]string{"label": docker.LabelManaged + "=true"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER\tNAME\tIMAGE\tSTATE\tBUILD")
	for _, c := range containers {
		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			id, c.Name, c.Image, c.State, c.Labels[docker.LabelBuild])
	}
	w.Flush()
	return ExitSuccess
}

// =============================================================================
// logs
// =============================================================================

func cmdLogs(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	follow := fs.Bool("follow", false, "stream logs until interrupted")
	tail := fs.String("tail", "all", "number of lines from the end, or \"all\"")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: stoker logs [-follow] [-tail n] <container-id>")
		return ExitConfigError
	}

	d, err := openDocker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	defer d.Close()

	reader, err := d.ContainerLogs(fs.Arg(0), docker.LogOptions{
		Follow: *follow,
		Tail:   *tail,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	defer reader.Close()

	if _, err := io.Copy(os.Stdout, reader); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDockerError
	}
	return ExitSuccess
}

// =============================================================================
// history
// =============================================================================

func cmdHistory(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum builds to list")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDatabaseError
	}
	defer s.Close()

	builds, err := s.ListBuilds(context.Background(), store.ListOptions{Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDatabaseError
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECIPE\tSTATUS\tIMAGE\tCREATED")
	for _, b := range builds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.ReferenceID, b.RecipeName, b.Status, b.ImageRef,
			b.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	return ExitSuccess
}

// =============================================================================
// compose
// =============================================================================

func cmdCompose(cfg *Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	recipePath := fs.String("f", DefaultRecipeFile, "recipe file")
	buildRef := fs.String("build", "", "build reference ID (default: latest build of identical inputs)")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	r, err := loadRecipe(*recipePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitDatabaseError
	}
	defer s.Close()

	record, err := resolveBuild(context.Background(), s, r, ".", *buildRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitBuildError
	}

	out, err := recipe.ExportCompose(*r, record.ImageRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}

	fmt.Print(out)
	return ExitSuccess
}
