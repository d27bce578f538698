package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"activatable/internal/core/apperror"
	"activatable/internal/metadata"
)

// ForeignKeyRule is one foreign key column as reported by information_schema.
type ForeignKeyRule struct {
	Table      string `db:"table_name"`
	Constraint string `db:"constraint_name"`
	Column     string `db:"column_name"`
	RefTable   string `db:"ref_table"`
	DeleteRule string `db:"delete_rule"`
}

const foreignKeysQuery = `
	SELECT kcu.table_name, kcu.constraint_name, kcu.column_name,
	       ccu.table_name AS ref_table, rc.delete_rule
	FROM information_schema.referential_constraints rc
	JOIN information_schema.key_column_usage kcu
	  ON kcu.constraint_schema = rc.constraint_schema
	 AND kcu.constraint_name = rc.constraint_name
	JOIN information_schema.constraint_column_usage ccu
	  ON ccu.constraint_schema = rc.unique_constraint_schema
	 AND ccu.constraint_name = rc.unique_constraint_name
	WHERE rc.constraint_schema = current_schema()
	  AND kcu.table_name = ANY($1)
	ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
`

// SchemaInspector reads constraint metadata from the connected database.
type SchemaInspector struct {
	txManager *TxManager
}

func NewSchemaInspector(txManager *TxManager) *SchemaInspector {
	return &SchemaInspector{txManager: txManager}
}

// ForeignKeys lists the foreign keys owned by tables.
func (s *SchemaInspector) ForeignKeys(ctx context.Context, tables []string) ([]ForeignKeyRule, error) {
	var rules []ForeignKeyRule
	if len(tables) == 0 {
		return rules, nil
	}
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &rules, foreignKeysQuery, tables); err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return rules, nil
}

// CheckCascade rejects database-level ON DELETE CASCADE rules on activatable tables
// that do not allow cascade delete. It complements metadata.ValidateActivatable,
// which only sees what the Go types declare.
func (s *SchemaInspector) CheckCascade(ctx context.Context, reg *metadata.Registry) error {
	defs := reg.Activatable()
	tables := make([]string, 0, len(defs))
	for _, def := range defs {
		tables = append(tables, def.TableName)
	}

	rules, err := s.ForeignKeys(ctx, tables)
	if err != nil {
		return err
	}
	return CascadeViolations(defs, rules)
}

// CascadeViolations matches rules against defs and joins one error per offending key.
func CascadeViolations(defs []metadata.ModelDef, rules []ForeignKeyRule) error {
	byTable := make(map[string]metadata.ModelDef, len(defs))
	for _, def := range defs {
		byTable[def.TableName] = def
	}

	var errs []error
	for _, rule := range rules {
		def, ok := byTable[rule.Table]
		if !ok || !def.Activatable || def.AllowCascadeDelete {
			continue
		}
		if metadata.OnDelete(rule.DeleteRule) != metadata.OnDeleteCascade {
			continue
		}
		errs = append(errs, apperror.NewInvalidModel(def.Name,
			fmt.Sprintf("Constraint %s on column %s cascades deletes from %s. Activatable models must not cascade.",
				rule.Constraint, rule.Column, rule.RefTable)).
			WithDetail("field", rule.Column).
			WithDetail("constraint", rule.Constraint).
			WithDetail("refTable", rule.RefTable))
	}
	return errors.Join(errs...)
}
