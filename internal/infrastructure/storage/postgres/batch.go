package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"activatable/internal/infrastructure/storage/rowmap"
	"activatable/internal/metadata"
)

// BatchInserter provides bulk insert using the COPY protocol.
// Significantly faster than individual INSERTs for large datasets (1000+ rows).
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice performs bulk insert from a slice of rows.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}

	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// CopyRecords inserts records of the type described by def. Every record must be
// a pointer to (or value of) a struct with db tags covering def's columns.
// No activation events are emitted; callers announce new rows themselves.
func (b *BatchInserter) CopyRecords(ctx context.Context, def metadata.ModelDef, records []any) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	columns, rows, err := copyRows(def, records)
	if err != nil {
		return 0, err
	}
	n, err := b.CopyFromSlice(ctx, def.TableName, columns, rows)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", def.TableName, err)
	}
	return n, nil
}

// copyRows lays records out in def's column order.
func copyRows(def metadata.ModelDef, records []any) ([]string, [][]any, error) {
	columns := def.Columns()
	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		data := rowmap.ToMap(rec)
		if data == nil {
			return nil, nil, fmt.Errorf("record %d of %s has no db columns", i, def.Name)
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			v, ok := data[col]
			if !ok {
				return nil, nil, fmt.Errorf("record %d of %s lacks column %s", i, def.Name, col)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}
