package analytics

import (
	"sort"
	"strings"

	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// Summarize computes the headline numbers of rows.
func Summarize(rows []shipments.Shipment) Summary {
	sum := Summary{
		TotalValue:    decimal.Zero,
		TotalQuantity: decimal.Zero,
		AvgUnitPrice:  decimal.Zero,
	}
	if len(rows) == 0 {
		return sum
	}

	suppliers := make(map[string]struct{})
	buyers := make(map[string]struct{})
	countries := make(map[string]struct{})
	first, last := rows[0].ShipmentDate, rows[0].ShipmentDate

	for _, r := range rows {
		sum.ShipmentCount++
		sum.TotalValue = sum.TotalValue.Add(r.ValueUSD)
		sum.TotalQuantity = sum.TotalQuantity.Add(r.Quantity)
		suppliers[DimSupplier.Key(r)] = struct{}{}
		buyers[DimBuyer.Key(r)] = struct{}{}
		countries[DimDestination.Key(r)] = struct{}{}
		if r.ShipmentDate.Before(first) {
			first = r.ShipmentDate
		}
		if r.ShipmentDate.After(last) {
			last = r.ShipmentDate
		}
	}

	sum.Suppliers = len(suppliers)
	sum.Buyers = len(buyers)
	sum.Countries = len(countries)
	if !sum.TotalQuantity.IsZero() {
		sum.AvgUnitPrice = sum.TotalValue.Div(sum.TotalQuantity).Round(4)
	}
	sum.FirstDate = &first
	sum.LastDate = &last
	return sum
}

// GroupBy runs the pipeline group → aggregate → sort → limit. Groups are
// ordered by value descending, ties broken by key. Shares are computed
// against the total of all rows, before truncation.
func GroupBy(rows []shipments.Shipment, dim Dimension, opts Options) []Group {
	groups := group(rows, dim)
	sortGroups(groups)
	return truncate(groups, opts)
}

func group(rows []shipments.Shipment, dim Dimension) []Group {
	if len(rows) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups []Group
	total := decimal.Zero

	for _, r := range rows {
		key := dim.Key(r)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Value: decimal.Zero, Quantity: decimal.Zero})
		}
		groups[i].Value = groups[i].Value.Add(r.ValueUSD)
		groups[i].Quantity = groups[i].Quantity.Add(r.Quantity)
		groups[i].Count++
		total = total.Add(r.ValueUSD)
	}

	for i := range groups {
		groups[i].Share = round2(percent(groups[i].Value, total))
	}
	return groups
}

func sortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if c := groups[i].Value.Cmp(groups[j].Value); c != 0 {
			return c > 0
		}
		return groups[i].Key < groups[j].Key
	})
}

func truncate(groups []Group, opts Options) []Group {
	if opts.Top <= 0 || len(groups) <= opts.Top {
		return groups
	}
	head := groups[:opts.Top:opts.Top]
	if !opts.Others {
		return head
	}

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Value)
	}
	others := Group{Key: OthersKey, Value: decimal.Zero, Quantity: decimal.Zero}
	for _, g := range groups[opts.Top:] {
		others.Value = others.Value.Add(g.Value)
		others.Quantity = others.Quantity.Add(g.Quantity)
		others.Count += g.Count
	}
	others.Share = round2(percent(others.Value, total))
	return append(head, others)
}

// Filter returns the rows whose dim key equals key, ignoring case. For
// DimHSCode the key is matched as a code prefix.
func Filter(rows []shipments.Shipment, dim Dimension, key string) []shipments.Shipment {
	key = strings.TrimSpace(key)
	var out []shipments.Shipment
	for _, r := range rows {
		if dim == DimHSCode {
			if key != "" && strings.HasPrefix(r.HSCode, key) {
				out = append(out, r)
			}
			continue
		}
		if strings.EqualFold(dim.Key(r), key) {
			out = append(out, r)
		}
	}
	return out
}
