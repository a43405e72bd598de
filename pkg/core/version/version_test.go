package version

import (
	"regexp"
	"strings"
	"testing"
)

// semverRegex validates semantic versioning format
var semverRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func TestVersionConstants(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"Version", Version},
		{"SearchLanguage", SearchLanguage},
		{"OleaLanguage", OleaLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !semverRegex.MatchString(tt.version) {
				t.Errorf("%s version %q does not match semver format (x.y.z)", tt.name, tt.version)
			}
		})
	}
}

func TestGet(t *testing.T) {
	original := Commit
	Commit = "abc123"
	defer func() { Commit = original }()

	info := Get()
	if info.Version != Version || info.Commit != "abc123" {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.HasPrefix(info.String(), "iguana "+Version) || !strings.HasSuffix(info.String(), "commit abc123") {
		t.Errorf("String() = %q", info.String())
	}
}
