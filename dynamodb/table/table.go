package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	TimeToLiveKey  string
	GSIs           []GSIDefinition
	LSIs           []LSIDefinition
}

// GSIDefinition represents a Global Secondary Index definition.
type GSIDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
}

// LSIDefinition represents a Local Secondary Index definition.
// An LSI shares the partition key of its table, so only the sort key is declared.
type LSIDefinition struct {
	Name    string
	SortKey KeyDef
}

// IndexType tells the two kinds of secondary index apart.
type IndexType string

const (
	IndexTypeGSI IndexType = "GSI"
	IndexTypeLSI IndexType = "LSI"
)

// IndexSignature is the physical key-name contract a table declares for one of its indexes.
// SortKeyName is empty for a GSI without a sort key. PartitionKeyName is empty for an LSI.
type IndexSignature struct {
	Type             IndexType
	PartitionKeyName string
	SortKeyName      string
}

// KeyNames returns the attribute names the signature projects, partition key first.
func (s IndexSignature) KeyNames() []string {
	var names []string
	if s.Type == IndexTypeGSI && s.PartitionKeyName != "" {
		names = append(names, s.PartitionKeyName)
	}
	if s.SortKeyName != "" {
		names = append(names, s.SortKeyName)
	}
	return names
}

// IndexSignature looks up the signature of the named GSI or LSI.
func (t TableDefinition) IndexSignature(indexName string) (IndexSignature, bool) {
	for _, gsi := range t.GSIs {
		if gsi.Name == indexName {
			return IndexSignature{
				Type:             IndexTypeGSI,
				PartitionKeyName: gsi.KeyDefinitions.PartitionKey.Name,
				SortKeyName:      gsi.KeyDefinitions.SortKey.Name,
			}, true
		}
	}
	for _, lsi := range t.LSIs {
		if lsi.Name == indexName {
			return IndexSignature{
				Type:        IndexTypeLSI,
				SortKeyName: lsi.SortKey.Name,
			}, true
		}
	}
	return IndexSignature{}, false
}

// LSIKeyDefinitions returns the full key definition of an LSI,
// combining the table's partition key with the LSI's sort key.
func (t TableDefinition) LSIKeyDefinitions(lsi LSIDefinition) PrimaryKeyDefinition {
	return PrimaryKeyDefinition{
		PartitionKey: t.KeyDefinitions.PartitionKey,
		SortKey:      lsi.SortKey,
	}
}

// Validate checks the table has a name, a partition key and uniquely named indexes.
func (t TableDefinition) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if t.KeyDefinitions.PartitionKey.Name == "" {
		return fmt.Errorf("table %q: partition key name is required", t.Name)
	}
	seen := make(map[string]bool)
	for _, gsi := range t.GSIs {
		if gsi.Name == "" {
			return fmt.Errorf("table %q: GSI name is required", t.Name)
		}
		if seen[gsi.Name] {
			return fmt.Errorf("table %q: duplicate index name %q", t.Name, gsi.Name)
		}
		seen[gsi.Name] = true
		if gsi.KeyDefinitions.PartitionKey.Name == "" {
			return fmt.Errorf("table %q: partition key name is required for GSI %q", t.Name, gsi.Name)
		}
	}
	for _, lsi := range t.LSIs {
		if lsi.Name == "" {
			return fmt.Errorf("table %q: LSI name is required", t.Name)
		}
		if seen[lsi.Name] {
			return fmt.Errorf("table %q: duplicate index name %q", t.Name, lsi.Name)
		}
		seen[lsi.Name] = true
		if lsi.SortKey.Name == "" {
			return fmt.Errorf("table %q: sort key name is required for LSI %q", t.Name, lsi.Name)
		}
	}
	return nil
}

// ExtractPrimaryKey extracts the primary key values from a document.
func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		panic(fmt.Sprintf("unsupported attribute value %T for dynamodb keys", v))
	}
}
