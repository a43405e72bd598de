package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/model"
)

// Fixture is a set of records loaded into a repository. It is written
// as YAML or as JSON with comments and trailing commas.
type Fixture struct {
	Records []*model.Record `yaml:"records" json:"records"`
}

// FixtureFormat selects the fixture syntax
type FixtureFormat string

const (
	FormatYAML FixtureFormat = "yaml"
	FormatJSON FixtureFormat = "json"
)

// FormatForPath picks the format from a file extension
func FormatForPath(path string) (FixtureFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc", ".hujson":
		return FormatJSON, nil
	default:
		return "", mdwerror.Newf("unknown fixture format %q", filepath.Ext(path)).
			WithCode(mdwerror.CodeInvalidInput)
	}
}

// DecodeFixture reads a fixture
func DecodeFixture(r io.Reader, format FixtureFormat) (*Fixture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mdwerror.Wrap(err, "failed to read fixture")
	}

	var fx Fixture
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
			return nil, mdwerror.Wrap(err, "invalid YAML fixture").WithCode(mdwerror.CodeInvalidInput)
		}
	case FormatJSON:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, mdwerror.Wrap(err, "invalid JSON fixture").WithCode(mdwerror.CodeInvalidInput)
		}
		dec := json.NewDecoder(bytes.NewReader(std))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fx); err != nil {
			return nil, mdwerror.Wrap(err, "invalid JSON fixture").WithCode(mdwerror.CodeInvalidInput)
		}
	default:
		return nil, mdwerror.Newf("unknown fixture format %q", format).WithCode(mdwerror.CodeInvalidInput)
	}

	for i, rec := range fx.Records {
		if rec == nil || rec.Entity == "" {
			return nil, mdwerror.Newf("fixture record %d has no entity", i).
				WithCode(mdwerror.CodeInvalidInput)
		}
		rec.NormalizeAll()
		rec.RestoreTimes()
	}
	return &fx, nil
}

// EncodeFixture writes records as a YAML fixture
func EncodeFixture(w io.Writer, records []*model.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Fixture{Records: records}); err != nil {
		return mdwerror.Wrap(err, "failed to encode fixture")
	}
	return enc.Close()
}

// LoadFixtureFile reads a fixture file into the repository
func (m *MemoryRepository) LoadFixtureFile(path string) (int, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, mdwerror.Wrap(err, "failed to open fixture").
			WithCode(mdwerror.CodeNotFound).
			WithDetail("path", path)
	}
	defer f.Close()
	return m.LoadFixture(f, format)
}

// LoadFixture reads a fixture into the repository
func (m *MemoryRepository) LoadFixture(r io.Reader, format FixtureFormat) (int, error) {
	fx, err := DecodeFixture(r, format)
	if err != nil {
		return 0, err
	}
	if err := m.Put(fx.Records...); err != nil {
		return 0, err
	}
	return len(fx.Records), nil
}
