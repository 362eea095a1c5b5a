package access

import "context"

type tableKey struct{}

// WithTable returns a context carrying the permission table loaded for a request.
func WithTable(ctx context.Context, table *Table) context.Context {
	return context.WithValue(ctx, tableKey{}, table)
}

// TableFromContext returns the table stored by WithTable. A missing table is nil,
// which denies everything.
func TableFromContext(ctx context.Context) *Table {
	table, _ := ctx.Value(tableKey{}).(*Table)
	return table
}
