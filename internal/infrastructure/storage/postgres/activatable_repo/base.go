// Package activatable_repo provides PostgreSQL implementations for activatable
// record repositories.
package activatable_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"activatable/internal/core/apperror"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/internal/infrastructure/storage/rowmap"
	"activatable/internal/metadata"
)

// pgForeignKeyViolation is the SQLSTATE raised when a referenced row is deleted.
const pgForeignKeyViolation = "23503"

// BaseActivatableRepo provides common operations for activatable record types.
// Embed this in specific repositories.
type BaseActivatableRepo[T entity.Activatable] struct {
	txManager  *postgres.TxManager
	name       string
	tableName  string
	flagColumn string
	selectCols []string
	newFn      func() T
}

// NewBaseActivatableRepo creates a repository for the type described by def.
func NewBaseActivatableRepo[T entity.Activatable](
	txManager *postgres.TxManager,
	def metadata.ModelDef,
	newFn func() T,
) *BaseActivatableRepo[T] {
	return &BaseActivatableRepo[T]{
		txManager:  txManager,
		name:       def.Name,
		tableName:  def.TableName,
		flagColumn: def.ActivatableField,
		selectCols: def.Columns(),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseActivatableRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseActivatableRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *BaseActivatableRepo[T]) hasColumn(col string) bool {
	for _, c := range r.selectCols {
		if c == col {
			return true
		}
	}
	return false
}

// Create inserts a new entity using its "db" tags.
func (r *BaseActivatableRepo[T]) Create(ctx context.Context, e T) error {
	data := rowmap.ToMap(e)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	// Filter to only include columns that exist in DB
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// buildUpdate creates the optimistic-locking UPDATE for an entity.
func (r *BaseActivatableRepo[T]) buildUpdate(e T) (squirrel.UpdateBuilder, error) {
	data := rowmap.ToMap(e)
	if len(data) == 0 {
		return squirrel.UpdateBuilder{}, fmt.Errorf("no db tags found in entity")
	}

	version, ok := data["version"].(int)
	if !ok {
		return squirrel.UpdateBuilder{}, fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	// Exclude immutable fields from SET
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	return r.Builder().
		Update(r.tableName).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.GetID()}).
		Where(squirrel.Eq{"version": version}). // optimistic lock: expect current version
		Suffix("RETURNING version"), nil
}

// Update modifies an existing entity with optimistic locking and syncs its version.
func (r *BaseActivatableRepo[T]) Update(ctx context.Context, e T) error {
	q, err := r.buildUpdate(e)
	if err != nil {
		return err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var newVersion int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewConcurrentModification(r.name, e.GetID().String())
		}
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}

	return rowmap.Set(e, map[string]any{"version": newVersion})
}

// baseSelect creates a SELECT builder.
func (r *BaseActivatableRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves entity by ID.
func (r *BaseActivatableRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e := r.newFn()

	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(r.name, entityID.String())
		}
		return e, fmt.Errorf("get by id: %w", err)
	}
	return e, nil
}

func (r *BaseActivatableRepo[T]) buildStoredActivation(entityID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.flagColumn).
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		Suffix("FOR UPDATE")
}

// StoredActivation reads the persisted flag and locks the row until the transaction ends.
func (r *BaseActivatableRepo[T]) StoredActivation(ctx context.Context, entityID id.ID) (bool, bool, error) {
	sql, args, err := r.buildStoredActivation(entityID).ToSql()
	if err != nil {
		return false, false, fmt.Errorf("build query: %w", err)
	}

	var active bool
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("stored activation: %w", err)
	}
	return active, true, nil
}

func (r *BaseActivatableRepo[T]) buildSetActivation(entityID id.ID, active bool) squirrel.UpdateBuilder {
	return r.Builder().
		Update(r.tableName).
		Set(r.flagColumn, active).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID})
}

// SetActivation writes only the flag column.
func (r *BaseActivatableRepo[T]) SetActivation(ctx context.Context, entityID id.ID, active bool) error {
	sql, args, err := r.buildSetActivation(entityID, active).ToSql()
	if err != nil {
		return fmt.Errorf("build set activation: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("execute set activation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.name, entityID.String())
	}
	return nil
}

// HardDelete performs physical removal from the database.
func (r *BaseActivatableRepo[T]) HardDelete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.mapDeleteErr(err, entityID.String())
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.name, entityID.String())
	}
	return nil
}

func (r *BaseActivatableRepo[T]) mapDeleteErr(err error, target string) error {
	// Check for foreign key violation (23503)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return apperror.NewProtected(r.name, target).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return fmt.Errorf("execute delete %s: %w", r.tableName, err)
}

// conditions translates a filter into WHERE predicates.
func (r *BaseActivatableRepo[T]) conditions(f domain.ListFilter) ([]squirrel.Sqlizer, error) {
	var conds []squirrel.Sqlizer

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		var or squirrel.Or
		for _, col := range []string{"name", "code"} {
			if r.hasColumn(col) {
				or = append(or, squirrel.ILike{col: pattern})
			}
		}
		if len(or) > 0 {
			conds = append(conds, or)
		}
	}

	if len(f.IDs) > 0 {
		conds = append(conds, squirrel.Eq{"id": f.IDs})
	}

	if f.Active != nil {
		conds = append(conds, squirrel.Eq{r.flagColumn: *f.Active})
	}

	advanced, err := r.advancedConditions(f.AdvancedFilters)
	if err != nil {
		return nil, err
	}
	return append(conds, advanced...), nil
}

// advancedConditions applies column filters.
func (r *BaseActivatableRepo[T]) advancedConditions(filters []filter.Item) ([]squirrel.Sqlizer, error) {
	var conds []squirrel.Sqlizer

	for _, item := range filters {
		// Whitelist columns for SQL injection protection
		if !r.hasColumn(item.Field) {
			return nil, apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field)).
				WithDetail("field", item.Field)
		}

		switch item.Operator {
		case filter.Equal, filter.InList:
			conds = append(conds, squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual, filter.NotInList:
			conds = append(conds, squirrel.NotEq{item.Field: item.Value})
		case filter.LessOrEqual:
			conds = append(conds, squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			conds = append(conds, squirrel.GtOrEq{item.Field: item.Value})
		case filter.Less:
			conds = append(conds, squirrel.Lt{item.Field: item.Value})
		case filter.Greater:
			conds = append(conds, squirrel.Gt{item.Field: item.Value})
		case filter.IsNull:
			conds = append(conds, squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			conds = append(conds, squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			conds = append(conds, squirrel.ILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.NotContains:
			conds = append(conds, squirrel.NotILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		default:
			return nil, apperror.NewValidation(fmt.Sprintf("invalid filter operator: %s", item.Operator)).
				WithDetail("field", item.Field)
		}
	}

	return conds, nil
}

func (r *BaseActivatableRepo[T]) filteredSelect(f domain.ListFilter, cols ...string) (squirrel.SelectBuilder, error) {
	q := r.Builder().Select(cols...).From(r.tableName)
	conds, err := r.conditions(f)
	if err != nil {
		return q, err
	}
	for _, c := range conds {
		q = q.Where(c)
	}
	return q, nil
}

func (r *BaseActivatableRepo[T]) buildPartition(f domain.ListFilter) (squirrel.SelectBuilder, error) {
	q, err := r.filteredSelect(f, "id", r.flagColumn)
	if err != nil {
		return q, err
	}
	return q.OrderBy("id").Suffix("FOR UPDATE"), nil
}

// Partition locks the matching rows and splits their IDs by flag value.
func (r *BaseActivatableRepo[T]) Partition(ctx context.Context, f domain.ListFilter, active bool) ([]id.ID, []id.ID, error) {
	q, err := r.buildPartition(f)
	if err != nil {
		return nil, nil, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("build partition: %w", err)
	}

	rows, err := r.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("select for update: %w", err)
	}
	defer rows.Close()

	var changed, touched []id.ID
	for rows.Next() {
		var (
			rowID   id.ID
			current bool
		)
		if err := rows.Scan(&rowID, &current); err != nil {
			return nil, nil, fmt.Errorf("scan partition: %w", err)
		}
		touched = append(touched, rowID)
		if current != active {
			changed = append(changed, rowID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate partition: %w", err)
	}

	return changed, touched, nil
}

func (r *BaseActivatableRepo[T]) buildUpdateWhere(f domain.ListFilter, values map[string]any) (squirrel.UpdateBuilder, error) {
	for col := range values {
		if !r.hasColumn(col) || col == "id" || col == "version" {
			return squirrel.UpdateBuilder{}, apperror.NewValidation(fmt.Sprintf("column %s cannot be updated", col)).
				WithDetail("field", col)
		}
	}

	q := r.Builder().
		Update(r.tableName).
		SetMap(values).
		Set("version", squirrel.Expr("version + 1"))

	conds, err := r.conditions(f)
	if err != nil {
		return q, err
	}
	for _, c := range conds {
		q = q.Where(c)
	}
	return q, nil
}

// UpdateWhere applies column values to every row matching f.
func (r *BaseActivatableRepo[T]) UpdateWhere(ctx context.Context, f domain.ListFilter, values map[string]any) (int64, error) {
	q, err := r.buildUpdateWhere(f, values)
	if err != nil {
		return 0, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bulk update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update %s: %w", r.tableName, err)
	}
	return result.RowsAffected(), nil
}

func (r *BaseActivatableRepo[T]) buildDeleteWhere(f domain.ListFilter) (squirrel.DeleteBuilder, error) {
	q := r.Builder().Delete(r.tableName)
	conds, err := r.conditions(f)
	if err != nil {
		return q, err
	}
	for _, c := range conds {
		q = q.Where(c)
	}
	return q, nil
}

// DeleteWhere removes every row matching f in one statement.
func (r *BaseActivatableRepo[T]) DeleteWhere(ctx context.Context, f domain.ListFilter) (int64, error) {
	q, err := r.buildDeleteWhere(f)
	if err != nil {
		return 0, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bulk delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.mapDeleteErr(err, "matching query")
	}
	return result.RowsAffected(), nil
}

// SelectIDs returns the IDs of rows matching f.
func (r *BaseActivatableRepo[T]) SelectIDs(ctx context.Context, f domain.ListFilter) ([]id.ID, error) {
	q, err := r.filteredSelect(f, "id")
	if err != nil {
		return nil, err
	}

	sql, args, err := q.OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.querier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	return ids, nil
}

// List retrieves entities with filtering and pagination.
func (r *BaseActivatableRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q, err := r.filteredSelect(f, r.selectCols...)
	if err != nil {
		return result, err
	}

	// Count total (before pagination)
	countSQL, countArgs, err := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	// Apply ordering
	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	// Apply pagination
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	result.Items = make([]T, 0)
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

func (r *BaseActivatableRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		if r.hasColumn("name") {
			return "name ASC", nil
		}
		return "id ASC", nil
	}

	// Support "-field" for DESC.
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !r.hasColumn(field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}
