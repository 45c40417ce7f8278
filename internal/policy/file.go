package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

// overrides is the on-disk shape:
//
//	roles:
//	  staff_member: [clients:view, deals:view, projects:view, tasks:update]
//
// Every listed role has its grants replaced; unlisted roles keep the defaults.
type overrides struct {
	Roles map[domain.Role][]Action `yaml:"roles"`
}

// LoadFile returns Default() with the grants from path applied. An empty
// path yields the defaults.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse applies YAML overrides on top of Default()
func Parse(data []byte) (Table, error) {
	var o overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	table := Default()
	for role, actions := range o.Roles {
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown role %q", role)
		}
		for _, a := range actions {
			if !a.Valid() {
				return nil, fmt.Errorf("policy: unknown action %q for role %s", a, role)
			}
			if internalOnly[a] && !role.IsInternal() {
				return nil, fmt.Errorf("policy: %s cannot be granted to company role %s", a, role)
			}
		}
		table[role] = grant(actions...)
	}
	return table, nil
}
