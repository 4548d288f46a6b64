package processing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/embedding"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

// ProcessingResult holds the outcome of a file processing operation
type ProcessingResult struct {
	Shipments          []shipments.Shipment
	TriageRows         []TriageRow
	BlankRowsDiscarded int
}

// TriageRow represents a row that failed processing and needs human review
type TriageRow struct {
	Line           int               `json:"line"`
	OriginalRecord map[string]string `json:"original_record"`
	FailureReason  string            `json:"failure_reason"`
}

// GenericProcessor uses an ImportConfig to turn a CSV file into shipments
type GenericProcessor struct {
	config ImportConfig
}

// NewGenericProcessor creates a new processor with a specific configuration
func NewGenericProcessor(config ImportConfig) *GenericProcessor {
	return &GenericProcessor{config: config}
}

// Process reads every record of file. Bad rows are triaged, not fatal; only
// an unreadable file or a missing header is an error. embedder may be nil.
func (p *GenericProcessor) Process(ctx context.Context, file io.Reader, embedder embedding.Func) (*ProcessingResult, error) {
	result := &ProcessingResult{}
	csvReader := csv.NewReader(file)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading header row: %w", err)
	}

	headerMap := make(map[string]int)
	for i, h := range headers {
		headerMap[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	for _, mapping := range p.config.ColumnMappings {
		if _, ok := headerMap[mapping.CSVHeader]; !ok {
			return nil, fmt.Errorf("configuration error: CSV file is missing required header '%s'", mapping.CSVHeader)
		}
	}

	numHeaders := len(headers)

	mergeColumnIndex := -1
	for _, mapping := range p.config.ColumnMappings {
		if mapping.MergeExcessFields {
			mergeColumnIndex = headerMap[mapping.CSVHeader]
			break
		}
	}

	allRecords, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	for i, record := range allRecords {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		line := i + 2

		if isRowBlank(record) {
			result.BlankRowsDiscarded++
			continue
		}

		if len(record) > numHeaders && mergeColumnIndex != -1 {
			record = mergeExcess(record, numHeaders, mergeColumnIndex)
		}

		if len(record) != numHeaders {
			result.TriageRows = append(result.TriageRows, TriageRow{
				Line:           line,
				OriginalRecord: createOriginalRecordMap(record, headers),
				FailureReason:  fmt.Sprintf("Row has %d fields, but header has %d. Triage required.", len(record), numHeaders),
			})
			continue
		}

		fields, err := p.processRow(record, headerMap)
		if err != nil {
			result.TriageRows = append(result.TriageRows, TriageRow{
				Line:           line,
				OriginalRecord: createOriginalRecordMap(record, headers),
				FailureReason:  err.Error(),
			})
			continue
		}

		shipment, err := toShipment(fields)
		if err != nil {
			result.TriageRows = append(result.TriageRows, TriageRow{
				Line:           line,
				OriginalRecord: createOriginalRecordMap(record, headers),
				FailureReason:  err.Error(),
			})
			continue
		}

		if p.config.EmbedContent != nil && embedder != nil {
			if text := embedText(fields, p.config.EmbedContent.SourceFields); text != "" {
				slog.Debug("Generating embedding for text", "text", text)
				vec, err := embedder(ctx, text)
				if err != nil {
					result.TriageRows = append(result.TriageRows, TriageRow{
						Line:           line,
						OriginalRecord: createOriginalRecordMap(record, headers),
						FailureReason:  fmt.Sprintf("failed to generate embedding: %s", err.Error()),
					})
					continue
				}
				shipment.Embedding = pgvector.NewVector(vec)
			}
		}

		result.Shipments = append(result.Shipments, shipment)
	}

	slog.InfoContext(ctx, "Processing complete",
		"import_type", p.config.ImportType,
		"shipments", len(result.Shipments),
		"triage_rows", len(result.TriageRows),
		"blank_rows_discarded", result.BlankRowsDiscarded,
	)
	return result, nil
}

// mergeExcess folds the surplus fields of an over-long record back into the
// merge column, which usually holds free text with unquoted commas.
func mergeExcess(record []string, numHeaders, mergeColumnIndex int) []string {
	numExtraFields := len(record) - numHeaders
	endOfMergeIndex := mergeColumnIndex + numExtraFields
	rejoinedValue := strings.Join(record[mergeColumnIndex:endOfMergeIndex+1], ",")

	corrected := make([]string, 0, numHeaders)
	corrected = append(corrected, record[:mergeColumnIndex]...)
	corrected = append(corrected, rejoinedValue)
	corrected = append(corrected, record[endOfMergeIndex+1:]...)
	return corrected
}

// processRow handles the 'attempts' logic for a single, non-blank row.
func (p *GenericProcessor) processRow(record []string, headerMap map[string]int) (map[string]any, error) {
	processed := make(map[string]any, len(p.config.ColumnMappings))

	for _, mapping := range p.config.ColumnMappings {
		rawValue := record[headerMap[mapping.CSVHeader]]

		var value any = rawValue
		if len(mapping.Attempts) > 0 {
			var transformError error
			transformed := false
			for _, attempt := range mapping.Attempts {
				val, err := applyTransforms(rawValue, attempt.Transforms)
				if err == nil {
					value = val
					transformed = true
					break
				}
				transformError = err
			}
			if !transformed {
				return nil, fmt.Errorf("all transform attempts failed for column '%s' with value '%s': %w", mapping.CSVHeader, rawValue, transformError)
			}
		}

		if err := applyValidation(value, mapping.Validation); err != nil {
			return nil, fmt.Errorf("validation failed for column '%s' with value '%v': %w", mapping.CSVHeader, value, err)
		}

		processed[mapping.Field] = value
	}
	return processed, nil
}

// toShipment assigns processed values to shipment fields, checking that each
// value has the type its field needs.
func toShipment(fields map[string]any) (shipments.Shipment, error) {
	var s shipments.Shipment
	for field, value := range fields {
		var err error
		switch field {
		case FieldShipmentDate:
			s.ShipmentDate, err = asDate(field, value)
		case FieldQuantity:
			s.Quantity, err = asDecimal(field, value)
		case FieldValueUSD:
			s.ValueUSD, err = asDecimal(field, value)
		case FieldHSCode:
			s.HSCode, err = asString(field, value)
		case FieldProduct:
			s.Product, err = asString(field, value)
		case FieldSupplier:
			s.Supplier, err = asString(field, value)
		case FieldBuyer:
			s.Buyer, err = asString(field, value)
		case FieldOriginCountry:
			s.OriginCountry, err = asString(field, value)
		case FieldDestinationCountry:
			s.DestinationCountry, err = asString(field, value)
		case FieldPort:
			s.Port, err = asString(field, value)
		case FieldUnit:
			s.Unit, err = asString(field, value)
		}
		if err != nil {
			return shipments.Shipment{}, err
		}
	}
	if s.ShipmentDate.IsZero() {
		return shipments.Shipment{}, fmt.Errorf("field '%s' is missing", FieldShipmentDate)
	}
	if s.ValueUSD.IsNegative() || s.Quantity.IsNegative() {
		return shipments.Shipment{}, fmt.Errorf("quantity and value must not be negative")
	}
	return s, nil
}

func asString(field string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("field '%s' expects text, got %T", field, v)
}

func asDecimal(field string, v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, nil
		}
	case nil:
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("field '%s' expects a number, got '%v'; add a to_decimal transform", field, v)
}

func asDate(field string, v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("field '%s' expects a date, got '%v'; add a to_date transform", field, v)
}

func embedText(fields map[string]any, sources []string) string {
	parts := make([]string, 0, len(sources))
	for _, f := range sources {
		if v, ok := fields[f]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprintf("%v", v)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

// --- Helper functions ---

func isRowBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func createOriginalRecordMap(record []string, headers []string) map[string]string {
	rowMap := make(map[string]string)
	for i, header := range headers {
		if i < len(record) {
			rowMap[header] = record[i]
		} else {
			rowMap[header] = ""
		}
	}
	return rowMap
}

func applyTransforms(value string, transforms []string) (any, error) {
	var currentValue any = value
	for _, transformCall := range transforms {
		transformName, arg, _ := strings.Cut(transformCall, ":")
		transformer, err := lookupTransform(transformCall)
		if err != nil {
			return nil, err
		}
		newValue, err := transformer(currentValue, arg)
		if err != nil {
			return nil, fmt.Errorf("transform '%s' failed: %w", transformName, err)
		}
		currentValue = newValue
	}
	return currentValue, nil
}

func applyValidation(value any, rules ValidationRule) error {
	if str, ok := value.(string); ok && str == "" && !rules.Required {
		return nil
	}
	for _, name := range validationOrder {
		if err := validationRegistry[name](value, rules); err != nil {
			return fmt.Errorf("validation rule '%s' failed: %w", name, err)
		}
	}
	return nil
}
