// Package table describes the single physical DynamoDB table the whole
// application stores its entities in: the table name, the primary key
// attribute names, and any global secondary indexes. A Definition is
// built once (in code or from YAML) and shared read-only by every
// repository bound to it.
package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyNames holds the attribute names of a partition/sort key pair.
type KeyNames struct {
	PartitionKey string `yaml:"partitionKey"`
	SortKey      string `yaml:"sortKey"`
}

// GSI describes a global secondary index over the table.
type GSI struct {
	Name string   `yaml:"name"`
	Keys KeyNames `yaml:"keys"`
}

// Definition is the static descriptor of one table. It never changes
// after construction.
type Definition struct {
	Name string   `yaml:"name"`
	Keys KeyNames `yaml:"keys"`
	GSIs []GSI    `yaml:"gsis,omitempty"`
}

// Validate checks that the definition names a table, both primary key
// attributes, and both key attributes of every GSI.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("table: definition has no name")
	}
	if d.Keys.PartitionKey == "" || d.Keys.SortKey == "" {
		return fmt.Errorf("table %q: partition and sort key attribute names are required", d.Name)
	}
	seen := make(map[string]bool, len(d.GSIs))
	for _, gsi := range d.GSIs {
		if gsi.Name == "" {
			return fmt.Errorf("table %q: GSI with no name", d.Name)
		}
		if seen[gsi.Name] {
			return fmt.Errorf("table %q: duplicate GSI %q", d.Name, gsi.Name)
		}
		seen[gsi.Name] = true
		if gsi.Keys.PartitionKey == "" || gsi.Keys.SortKey == "" {
			return fmt.Errorf("table %q: GSI %q is missing key attribute names", d.Name, gsi.Name)
		}
	}
	return nil
}

// Index returns the GSI with the given name.
func (d Definition) Index(name string) (GSI, bool) {
	for _, gsi := range d.GSIs {
		if gsi.Name == name {
			return gsi, true
		}
	}
	return GSI{}, false
}

// KeyFor marshals a primary key pair into the attribute map DynamoDB
// expects for Get/Update/Delete calls.
func (d Definition) KeyFor(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		d.Keys.PartitionKey: &types.AttributeValueMemberS{Value: pk},
		d.Keys.SortKey:      &types.AttributeValueMemberS{Value: sk},
	}
}

// ExtractKey pulls the primary key strings out of a raw item.
func (d Definition) ExtractKey(item map[string]types.AttributeValue) (pk, sk string, err error) {
	pk, err = stringAttr(item, d.Keys.PartitionKey)
	if err != nil {
		return "", "", err
	}
	sk, err = stringAttr(item, d.Keys.SortKey)
	if err != nil {
		return "", "", err
	}
	return pk, sk, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, error) {
	av, ok := item[name]
	if !ok {
		return "", fmt.Errorf("table: item has no %q attribute", name)
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("table: attribute %q is %T, want string", name, av)
	}
	return s.Value, nil
}
