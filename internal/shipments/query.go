package shipments

import (
	"fmt"
	"strings"
)

const selectColumns = `id, shipment_date, hs_code, product, supplier, buyer,
	origin_country, destination_country, port, quantity, unit, value_usd`

// BuildWhere turns a Filter into a WHERE clause and its positional arguments.
// An empty filter yields an empty clause. Placeholders start at $1.
func BuildWhere(f Filter) (string, []any) {
	var (
		preds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Q); q != "" {
		p := next("%" + escapeLike(q) + "%")
		preds = append(preds, fmt.Sprintf("(product ILIKE %[1]s OR supplier ILIKE %[1]s OR buyer ILIKE %[1]s)", p))
	}
	if hs := strings.TrimSpace(f.HSCode); hs != "" {
		preds = append(preds, "hs_code LIKE "+next(escapeLike(hs)+"%"))
	}
	if s := strings.TrimSpace(f.Supplier); s != "" {
		preds = append(preds, "supplier ILIKE "+next(escapeLike(s)))
	}
	if b := strings.TrimSpace(f.Buyer); b != "" {
		preds = append(preds, "buyer ILIKE "+next(escapeLike(b)))
	}
	if c := strings.TrimSpace(f.Country); c != "" {
		p := next(escapeLike(c))
		preds = append(preds, fmt.Sprintf("(origin_country ILIKE %[1]s OR destination_country ILIKE %[1]s)", p))
	}
	if !f.From.IsZero() {
		preds = append(preds, "shipment_date >= "+next(f.From))
	}
	if !f.To.IsZero() {
		preds = append(preds, "shipment_date <= "+next(f.To))
	}

	if len(preds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(preds, " AND "), args
}

// escapeLike makes user input literal inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
