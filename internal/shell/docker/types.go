// Package docker provides a Docker client for image building and container
// lifecycle management.
package docker

import (
	"io"
	"time"
)

// =============================================================================
// Build Types
// =============================================================================

// BuildSpec defines the specification for building an image.
type BuildSpec struct {
	// Tag is the reference the built image is tagged with, e.g. "web-app:bld_1a2b3c4d".
	Tag string

	// Context is the tar stream of the build context, including the Dockerfile.
	Context io.Reader

	// Dockerfile is the path of the Dockerfile inside the context.
	Dockerfile string

	// Labels are applied to the built image.
	Labels map[string]string
}

// ImageInfo contains the inspected configuration of a built image.
type ImageInfo struct {
	ID string

	// ExposedPorts are the declared ports in "port/proto" form, sorted.
	ExposedPorts []string

	// Cmd is the image's launch command, exec form, exactly as recorded.
	Cmd []string

	// Entrypoint is the image's entrypoint, if any.
	Entrypoint []string

	Labels map[string]string
}

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
// The image's own CMD is used unless Command is set; launch fidelity means
// callers normally leave Command empty.
type ContainerSpec struct {
	Name    string
	Image   string
	Command []string
	Labels  map[string]string
	Ports   []PortBinding
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID         string
	Name       string
	Image      string
	Status     ContainerStatus
	State      string // "running", "exited", "created", etc.
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Ports      []PortBinding
	Labels     map[string]string
	ExitCode   int
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // Include stopped containers
	Filters map[string]string // e.g., {"label": "run.stoker.build=bld_xyz"}
}

// LogOptions defines options for container logs.
type LogOptions struct {
	Follow     bool
	Tail       string // "all" or number
	Since      time.Time
	Timestamps bool
}

// PullOptions defines options for pulling images.
type PullOptions struct {
	Platform string // e.g., "linux/amd64"

	// RegistryAuth is the base64-encoded auth config, empty for anonymous pulls.
	RegistryAuth string
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker client interface.
type Client interface {
	// Image operations
	BuildImage(spec BuildSpec) (imageID string, err error)
	PullImage(image string, opts PullOptions) error
	ImageExists(image string) (bool, error)
	InspectImage(image string) (*ImageInfo, error)

	// Container operations
	CreateContainer(spec ContainerSpec) (containerID string, err error)
	StartContainer(containerID string) error
	StopContainer(containerID string, timeout *time.Duration) error
	RemoveContainer(containerID string, opts RemoveOptions) error
	InspectContainer(containerID string) (*ContainerInfo, error)
	ListContainers(opts ListOptions) ([]ContainerInfo, error)
	ContainerLogs(containerID string, opts LogOptions) (io.ReadCloser, error)

	// Health operations
	Ping() error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged = "run.stoker.managed"
	LabelBuild   = "run.stoker.build"
	LabelRecipe  = "run.stoker.recipe"
)
