package build

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/sofmeright/ue4-docker/src/buildconfig"
)

//go:embed all:dockerfiles
var embedded embed.FS

// DefaultContexts returns the built-in build contexts, laid out as
// <image>/<platform>/.
func DefaultContexts() fs.FS {
	sub, err := fs.Sub(embedded, "dockerfiles")
	if err != nil {
		panic(err)
	}
	return sub
}

// renderContext copies the context for image on platform from src into
// dest and renders its Dockerfile in place. A non-empty override replaces
// the template text of the Dockerfile.
func renderContext(src fs.FS, image string, platform buildconfig.Platform, dest string, ctx map[string]any, override string) error {
	root := path.Join(image, string(platform))
	if _, err := fs.Stat(src, path.Join(root, "Dockerfile")); err != nil {
		return fmt.Errorf("no %s build context for %s: %w", platform, image, err)
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clearing %s: %w", dest, err)
	}
	sub, err := fs.Sub(src, root)
	if err != nil {
		return err
	}
	if err := os.CopyFS(dest, sub); err != nil {
		return fmt.Errorf("copying build context for %s: %w", image, err)
	}

	dockerfile := filepath.Join(dest, "Dockerfile")
	text := override
	if text == "" {
		data, err := os.ReadFile(dockerfile)
		if err != nil {
			return err
		}
		text = string(data)
	}

	rendered, err := Render(text, ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", image, err)
	}
	rendered = InjectPostRunMessage(rendered, platform)
	return os.WriteFile(dockerfile, []byte(rendered), 0o644)
}
