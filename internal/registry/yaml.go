package registry

import (
	"io"

	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
)

// EntitySpec is the file form of an entity registration
type EntitySpec struct {
	Entity string  `yaml:"entity"`
	Fields []Field `yaml:"fields"`
}

// LoadYAML registers the entities listed in a YAML document:
//
//	- entity: Milestone
//	  fields:
//	    - name: title
//	    - name: project
//	      relation: Project
func (r *Registry) LoadYAML(in io.Reader) error {
	var specs []EntitySpec
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil {
		if err == io.EOF {
			return nil
		}
		return mdwerror.Wrap(err, "failed to decode registry file").
			WithCode(mdwerror.CodeInvalidConfig)
	}
	for _, s := range specs {
		if err := r.Register(s.Entity, s.Fields...); err != nil {
			return err
		}
	}
	return nil
}

// DumpYAML writes the registrations in registration order
func (r *Registry) DumpYAML(out io.Writer) error {
	names := r.Entities()
	specs := make([]EntitySpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, EntitySpec{Entity: name, Fields: r.Fields(name)})
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(specs); err != nil {
		return err
	}
	return enc.Close()
}
