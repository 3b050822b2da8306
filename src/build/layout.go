package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CombinedDir is the layout subdirectory merged Dockerfiles are written to.
const CombinedDir = "combined"

// copyLayout copies a rendered context to <layoutDir>/<image>.
func copyLayout(src, layoutDir, image string) (string, error) {
	dest := filepath.Join(layoutDir, image)
	if err := os.CopyFS(dest, os.DirFS(src)); err != nil {
		return "", fmt.Errorf("copying %s to %s: %w", src, dest, err)
	}
	return dest, nil
}

// mergeLayout appends a rendered Dockerfile to <layoutDir>/combined and
// copies the supplemental files it references.
func mergeLayout(src, layoutDir string) (string, error) {
	dest := filepath.Join(layoutDir, CombinedDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	destDockerfile := filepath.Join(dest, "Dockerfile")
	existing, err := os.ReadFile(destDockerfile)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	addition, err := os.ReadFile(filepath.Join(src, "Dockerfile"))
	if err != nil {
		return "", err
	}

	merged := strings.Trim(string(existing)+"\n"+string(addition), "\n") + "\n"
	if err := os.WriteFile(destDockerfile, []byte(merged), 0o644); err != nil {
		return "", err
	}

	files, err := filepath.Glob(filepath.Join(src, "*.*"))
	if err != nil {
		return "", err
	}
	for _, file := range files {
		base := filepath.Base(file)
		if !strings.Contains(merged, base) {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		info, err := os.Stat(file)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dest, base), data, info.Mode().Perm()); err != nil {
			return "", err
		}
	}
	return dest, nil
}
