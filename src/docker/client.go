package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/sofmeright/ue4-docker/src/errs"
)

// Client implements Engine and Store against a local Docker daemon.
type Client struct {
	api     *client.Client
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewClient connects to the daemon configured by the DOCKER_* environment.
func NewClient(verbose bool) (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errs.Environment("creating docker client", err)
	}
	return &Client{
		api:     api,
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// Close releases the SDK connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// Exists implements Engine.
func (c *Client) Exists(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.api.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("inspecting image %s: %w", ref, err)
}

// Build implements Engine.
func (c *Client) Build(ctx context.Context, cmd Command) error {
	if err := c.run(ctx, cmd.Argv()...); err != nil {
		if cmd.UsesBuildx() {
			return fmt.Errorf("docker buildx build failed: %w", err)
		}
		return fmt.Errorf("docker build failed: %w", err)
	}
	return nil
}

// Pull implements Engine.
func (c *Client) Pull(ctx context.Context, ref string) error {
	if err := c.run(ctx, "pull", ref); err != nil {
		return fmt.Errorf("docker pull failed: %w", err)
	}
	return nil
}

// Info implements Engine.
func (c *Client) Info(ctx context.Context) (Info, error) {
	info, err := c.api.Info(ctx)
	if err != nil {
		return Info{}, errs.Environment("querying docker daemon", err)
	}

	runtimes := make([]string, 0, len(info.Runtimes))
	for name := range info.Runtimes {
		runtimes = append(runtimes, name)
	}
	sort.Strings(runtimes)

	return Info{
		OSType:          info.OSType,
		OperatingSystem: info.OperatingSystem,
		Isolation:       string(info.Isolation),
		RootDir:         info.DockerRootDir,
		ServerVersion:   info.ServerVersion,
		Runtimes:        runtimes,
		MemTotal:        info.MemTotal,
		NCPU:            info.NCPU,
	}, nil
}

// Version implements Engine.
func (c *Client) Version(ctx context.Context) (*semver.Version, error) {
	v, err := c.api.ServerVersion(ctx)
	if err != nil {
		return nil, errs.Environment("could not detect Docker version, please ensure Docker is installed and running", err)
	}
	return ParseVersion(v.Version)
}

// ParseVersion parses a daemon version string such as "20.10.7" or
// "19.03.6-ce".
func ParseVersion(raw string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, errs.Environment(fmt.Sprintf("unrecognised docker version %q", raw), err)
	}
	return v, nil
}

// ListImages implements Store.
func (c *Client) ListImages(ctx context.Context, filter ImageFilter) ([]Image, error) {
	args := filters.NewArgs()
	if filter.Reference != "" {
		args.Add("reference", filter.Reference)
	}
	if filter.Label != "" {
		args.Add("label", filter.Label)
	}
	if filter.Dangling {
		args.Add("dangling", "true")
	}

	summaries, err := c.api.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	images := make([]Image, 0, len(summaries))
	for _, s := range summaries {
		images = append(images, Image{ID: s.ID, RepoTags: s.RepoTags})
	}
	return images, nil
}

// Remove implements Store.
func (c *Client) Remove(ctx context.Context, ref string) error {
	if _, err := c.api.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
		return fmt.Errorf("removing image %s: %w", ref, err)
	}
	return nil
}

// Prune implements Store.
func (c *Client) Prune(ctx context.Context) error {
	if err := c.run(ctx, "system", "prune", "-f"); err != nil {
		return fmt.Errorf("docker system prune failed: %w", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if c.Verbose {
		fmt.Fprintf(c.Stderr, "exec: docker %s\n", strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}
