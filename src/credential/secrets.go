package credential

import (
	"fmt"
	"os"
	"path/filepath"
)

// Secret ids understood by the Dockerfile templates.
const (
	SecretUsername = "username"
	SecretPassword = "password"
)

// SecretFiles holds credentials written to disk for docker buildx --secret.
type SecretFiles struct {
	dir   string
	files map[string]string
}

// WriteSecrets writes the credentials into a fresh private directory.
// Remove must be called once the build that consumes them has finished.
func WriteSecrets(creds Credentials) (*SecretFiles, error) {
	dir, err := os.MkdirTemp("", "ue4-docker-secrets-")
	if err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}
	s := &SecretFiles{dir: dir, files: map[string]string{}}

	for id, value := range map[string]string{
		SecretUsername: creds.Username,
		SecretPassword: creds.Password,
	} {
		path := filepath.Join(dir, id)
		if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
			s.Remove()
			return nil, fmt.Errorf("writing %s secret: %w", id, err)
		}
		s.files[id] = path
	}
	return s, nil
}

// Flags returns the secret id to file path map for a build command.
func (s *SecretFiles) Flags() map[string]string {
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Remove deletes the secret files.
func (s *SecretFiles) Remove() error {
	return os.RemoveAll(s.dir)
}
