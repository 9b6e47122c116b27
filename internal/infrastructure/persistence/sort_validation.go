package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// orderSortColumns maps the sort keys the admin listing accepts to columns.
// Unknown keys fall back to created_at; the key never reaches SQL as text.
var orderSortColumns = map[string]string{
	"created_at":   "created_at",
	"total_amount": "total_amount",
	"order_number": "order_number",
}

// orderSortClause builds the ORDER BY for an order listing. Descending is
// the default so the newest orders come first. id breaks ties so paging is
// stable when timestamps collide.
func orderSortClause(sortBy, sortOrder string) clause.OrderBy {
	column, ok := orderSortColumns[strings.TrimSpace(sortBy)]
	if !ok {
		column = "created_at"
	}
	desc := !strings.EqualFold(strings.TrimSpace(sortOrder), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
