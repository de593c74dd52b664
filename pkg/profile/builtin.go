package profile

import (
	"embed"
	"fmt"
	"path"
	"sort"
)

// DefaultID is the profile used when none is requested.
const DefaultID = "sec-form-d"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns fresh, uncompiled copies of the embedded profiles sorted by ID.
func Builtin() []*Profile {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		panic(fmt.Sprintf("reading embedded profiles: %v", err))
	}

	profiles := make([]*Profile, 0, len(entries))
	for _, entry := range entries {
		data, err := builtinFS.ReadFile(path.Join("builtin", entry.Name()))
		if err != nil {
			panic(fmt.Sprintf("reading embedded profile %s: %v", entry.Name(), err))
		}
		p, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("embedded profile %s: %v", entry.Name(), err))
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles
}

// BuiltinYAML returns the raw YAML of an embedded profile, used by
// "fieldmap init" to seed a profile directory.
func BuiltinYAML(id string) ([]byte, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", id+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return data, nil
}
