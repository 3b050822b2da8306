package build

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

const (
	// DefaultNamespace is the repository namespace images are tagged under.
	DefaultNamespace = "adamrehn"

	// NamespaceEnv overrides DefaultNamespace.
	NamespaceEnv = "UE4DOCKER_TAG_NAMESPACE"

	// SentinelLabel marks intermediate images produced by our Dockerfiles
	// so dangling layers can be cleaned up later.
	SentinelLabel = "com.adamrehn.ue4-docker.sentinel"
)

// Namespace returns the tag namespace from the environment, falling back to
// DefaultNamespace.
func Namespace(getenv func(string) string) string {
	if getenv != nil {
		if ns := strings.TrimSpace(getenv(NamespaceEnv)); ns != "" {
			return ns
		}
	}
	return DefaultNamespace
}

// Repository qualifies an image name with namespace. Names that already
// carry a namespace are returned unchanged.
func Repository(namespace, image string) string {
	if strings.Contains(image, "/") || namespace == "" {
		return image
	}
	return namespace + "/" + image
}

// ImageRef builds and validates the reference namespace/image:tag.
func ImageRef(namespace, image, tag string) (string, error) {
	ref := Repository(namespace, image) + ":" + tag
	if _, err := name.NewTag(ref); err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	return ref, nil
}
