package processing

import "fmt"

// Shipment fields a column can be mapped to.
const (
	FieldShipmentDate       = "shipment_date"
	FieldHSCode             = "hs_code"
	FieldProduct            = "product"
	FieldSupplier           = "supplier"
	FieldBuyer              = "buyer"
	FieldOriginCountry      = "origin_country"
	FieldDestinationCountry = "destination_country"
	FieldPort               = "port"
	FieldQuantity           = "quantity"
	FieldUnit               = "unit"
	FieldValueUSD           = "value_usd"
)

var knownFields = map[string]bool{
	FieldShipmentDate: true, FieldHSCode: true, FieldProduct: true, FieldSupplier: true,
	FieldBuyer: true, FieldOriginCountry: true, FieldDestinationCountry: true, FieldPort: true,
	FieldQuantity: true, FieldUnit: true, FieldValueUSD: true,
}

// naturalKey are the fields that identify a shipment; every import must map them.
var naturalKey = []string{FieldShipmentDate, FieldHSCode, FieldSupplier, FieldBuyer, FieldValueUSD}

// ValidationRule defines the validation rules for a single column
type ValidationRule struct {
	Required  bool     `yaml:"required"`
	AllowZero *bool    `yaml:"allow_zero,omitempty"`
	Enum      []string `yaml:"enum"`
	Regex     string   `yaml:"regex"`
}

// ProcessingAttempt is one chain of transforms. Attempts are tried in order
// until one succeeds.
type ProcessingAttempt struct {
	Transforms []string `yaml:"transforms,omitempty"`
}

// ColumnMapping defines how to map and transform a single CSV column
type ColumnMapping struct {
	CSVHeader         string              `yaml:"csv_header"`
	Field             string              `yaml:"field"`
	MergeExcessFields bool                `yaml:"merge_excess_fields,omitempty"`
	Attempts          []ProcessingAttempt `yaml:"attempts"`
	Validation        ValidationRule      `yaml:"validation"`
}

// EmbedContent names the shipment fields joined into the embedding text.
type EmbedContent struct {
	SourceFields []string `yaml:"source_fields"`
}

// ImportConfig describes one CSV layout, selected by ImportType.
type ImportConfig struct {
	ImportType     string          `yaml:"import_type"`
	Description    string          `yaml:"description,omitempty"`
	EmbedContent   *EmbedContent   `yaml:"embed_content,omitempty"`
	ColumnMappings []ColumnMapping `yaml:"column_mappings"`
}

// Key indexes the config by its import type.
func (c *ImportConfig) Key() string { return c.ImportType }

// Validate checks if the ImportConfig is valid
func (c *ImportConfig) Validate() error {
	if c.ImportType == "" {
		return fmt.Errorf("config validation failed: import_type is required")
	}
	if len(c.ColumnMappings) == 0 {
		return fmt.Errorf("config validation failed: have at least one column mapping")
	}

	mapped := make(map[string]bool)
	merges := 0
	for _, m := range c.ColumnMappings {
		if m.CSVHeader == "" {
			return fmt.Errorf("config validation failed: csv_header is required for field '%s'", m.Field)
		}
		if !knownFields[m.Field] {
			return fmt.Errorf("config validation failed: column '%s' maps to unknown field '%s'", m.CSVHeader, m.Field)
		}
		if mapped[m.Field] {
			return fmt.Errorf("config validation failed: field '%s' is mapped more than once", m.Field)
		}
		mapped[m.Field] = true
		if m.MergeExcessFields {
			merges++
		}
		if m.Validation.Regex != "" {
			if _, err := compileRegex(m.Validation.Regex); err != nil {
				return fmt.Errorf("config validation failed: column '%s' has an invalid regex: %w", m.CSVHeader, err)
			}
		}
		for _, a := range m.Attempts {
			for _, t := range a.Transforms {
				if _, err := lookupTransform(t); err != nil {
					return fmt.Errorf("config validation failed: column '%s': %w", m.CSVHeader, err)
				}
			}
		}
	}
	if merges > 1 {
		return fmt.Errorf("config validation failed: only one column may set merge_excess_fields")
	}

	for _, f := range naturalKey {
		if !mapped[f] {
			return fmt.Errorf("config validation failed: key field '%s' is not mapped", f)
		}
	}

	if c.EmbedContent != nil {
		for _, f := range c.EmbedContent.SourceFields {
			if !mapped[f] {
				return fmt.Errorf("config validation failed: embed source field '%s' is not mapped", f)
			}
		}
	}
	return nil
}
