package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// actSortColumns are the financial_acts columns a caller may order by
var actSortColumns = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"start_time":       true,
	"act_type":         true,
	"status":           true,
	"total":            true,
	"allocated_amount": true,
}

// orderBy orders by the requested column when allowed lists it, and by
// fallback otherwise. Anything but "desc" sorts ascending. id breaks ties in
// the same direction so pages are stable.
func orderBy(column, direction string, allowed map[string]bool, fallback string) clause.OrderBy {
	column = strings.TrimSpace(column)
	if !allowed[column] {
		column = fallback
	}
	desc := strings.EqualFold(strings.TrimSpace(direction), "desc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
