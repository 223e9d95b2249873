package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyTarget is satisfied by both *pgxpool.Pool and pgx.Tx, so batch
// appends can run inside a transaction when atomicity matters.
type CopyTarget interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyInto bulk-inserts rows into a table using the COPY protocol,
// chunked to keep individual copies bounded.
func CopyInto(ctx context.Context, target CopyTarget, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	const chunkSize = 500

	total := 0
	for i := 0; i < len(rows); i += chunkSize {
		end := i + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		copied, err := target.CopyFrom(ctx, pgx.Identifier{table}, columns, &rowSource{rows: rows[i:end]})
		if err != nil {
			return total, fmt.Errorf("copy into %s failed at offset %d: %w", table, i, err)
		}
		total += int(copied)
	}

	return total, nil
}

// rowSource implements pgx.CopyFromSource over an in-memory slice.
type rowSource struct {
	rows  [][]any
	index int
}

func (r *rowSource) Next() bool {
	r.index++
	return r.index <= len(r.rows)
}

func (r *rowSource) Values() ([]any, error) {
	return r.rows[r.index-1], nil
}

func (r *rowSource) Err() error {
	return nil
}
