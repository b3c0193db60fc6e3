package table

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML table definition and validates it.
//
//	name: personal-budget
//	keys:
//	  partitionKey: pk
//	  sortKey: sk
//	gsis:
//	  - name: gsi1
//	    keys:
//	      partitionKey: gsi1pk
//	      sortKey: gsi1sk
func Parse(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("table: parse definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Load reads a YAML table definition from a file.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("table: read definition: %w", err)
	}
	return Parse(data)
}
