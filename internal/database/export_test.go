package database

import "context"

// WithNewPool overrides the pool constructor, for tests.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = func(ctx context.Context, dsn string) (dbPool, error) {
			return newPool(ctx, dsn)
		}
	}
}

// DBPool exposes the pool interface for test doubles.
type DBPool = dbPool

// BuildTodosQuery exposes the query builder for tests.
var BuildTodosQuery = buildTodosQuery
