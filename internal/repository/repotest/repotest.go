// Package repotest provides a populated in-memory repository for tests
package repotest

import (
	"bytes"
	_ "embed"
	"testing"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/repository"
)

//go:embed tracker.yaml
var trackerYAML []byte

// Users of the fixture
var (
	Alice = model.UserRef{ID: 1, Username: "a"}
	Bob   = model.UserRef{ID: 2, Username: "d"}
	Guest = model.UserRef{ID: 3, Username: "g"}
)

// Fixture returns the raw tracker fixture
func Fixture() []byte {
	return append([]byte(nil), trackerYAML...)
}

// New returns a memory repository loaded with the tracker fixture
func New(t testing.TB, opts repository.MemoryOptions) *repository.MemoryRepository {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = mdwlog.Discard()
	}
	repo, err := repository.NewMemory(opts)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	if _, err := repo.LoadFixture(bytes.NewReader(trackerYAML), repository.FormatYAML); err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}
	return repo
}
