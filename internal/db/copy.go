package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CopyFrom streams rows into table over the COPY protocol and returns the
// number of rows written. Table may be schema-qualified. Every row must have
// one value per column; a short or long row fails the whole copy before
// anything is sent.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, eris.Errorf("db: copy into %s: row %d has %d values for %d columns", table, i, len(r), len(columns))
		}
	}

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return rows[i], nil
	})
	n, err := pool.CopyFrom(ctx, identifier(table), columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}

	zap.L().Debug("db: copy complete", zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}
