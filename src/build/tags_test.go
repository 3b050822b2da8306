package build

import "testing"

func TestNamespace(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	if got := Namespace(getenv); got != DefaultNamespace {
		t.Errorf("Namespace() = %q", got)
	}
	env[NamespaceEnv] = "ghcr.io/example"
	if got := Namespace(getenv); got != "ghcr.io/example" {
		t.Errorf("Namespace() = %q", got)
	}
	if got := Namespace(nil); got != DefaultNamespace {
		t.Errorf("Namespace(nil) = %q", got)
	}
}

func TestImageRef(t *testing.T) {
	tests := []struct {
		ns, image, tag string
		want           string
		wantErr        bool
	}{
		{"adamrehn", "ue4-minimal", "4.27.0", "adamrehn/ue4-minimal:4.27.0", false},
		{"ghcr.io/example", "ue4-source", "4.26.2-test", "ghcr.io/example/ue4-source:4.26.2-test", false},
		{"adamrehn", "other/ue4-full", "custom", "other/ue4-full:custom", false},
		{"AdamRehn", "ue4-full", "4.27.0", "", true},
		{"adamrehn", "ue4-full", "bad tag", "", true},
	}
	for _, tt := range tests {
		got, err := ImageRef(tt.ns, tt.image, tt.tag)
		if (err != nil) != tt.wantErr {
			t.Errorf("ImageRef(%q, %q, %q) error = %v", tt.ns, tt.image, tt.tag, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ImageRef(%q, %q, %q) = %q, want %q", tt.ns, tt.image, tt.tag, got, tt.want)
		}
	}
}
