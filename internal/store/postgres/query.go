package postgres

import (
	"fmt"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// listQuery appends time-range filters, ordering and pagination from opts to
// base. base must already contain a WHERE clause and args its placeholders.
func listQuery(base, timeCol string, args []any, opts domain.ListOpts) (string, []any) {
	query := base
	next := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, next)
		args = append(args, *opts.Since)
		next++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, next)
		args = append(args, *opts.Until)
		next++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", next)
		args = append(args, opts.Limit)
		next++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", next)
		args = append(args, opts.Offset)
	}
	return query, args
}
