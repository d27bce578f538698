// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"activatable/internal/activation"
	"activatable/internal/core/id"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which instance lists are compressed.
const defaultCompressThreshold = 10 * 1024

// AuditEntry represents a single activation audit record.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	Action            string          `db:"action"`
	IsActive          bool            `db:"is_active"`
	InstanceCount     int             `db:"instance_count"`
	Actor             string          `db:"actor"`
	Instances         json.RawMessage `db:"instances"`
	InstancesCompress []byte          `db:"instances_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService stores activation events in sys_audit.
// It implements activation.Receiver.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes, default 10KB
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Entry converts ev into an audit row, compressing large instance lists.
func (s *AuditService) Entry(ev activation.Event) (AuditEntry, error) {
	instances, err := json.Marshal(id.Strings(ev.InstanceIDs))
	if err != nil {
		return AuditEntry{}, fmt.Errorf("marshal instances: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		EntityType:      ev.Model,
		Action:          string(ev.Kind),
		IsActive:        ev.IsActive,
		InstanceCount:   len(ev.InstanceIDs),
		Actor:           ev.Actor,
		Instances:       instances,
		CompressionAlgo: CompressionNone,
		CreatedAt:       ev.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if len(entry.Instances) > s.compressThreshold {
		entry.InstancesCompress = s.encoder.EncodeAll(entry.Instances, nil)
		entry.Instances = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// Decode restores the instance list of an entry.
func (s *AuditService) Decode(entry AuditEntry) ([]id.ID, error) {
	raw := entry.Instances
	if entry.CompressionAlgo == CompressionZstd && len(entry.InstancesCompress) > 0 {
		decompressed, err := s.decoder.DecodeAll(entry.InstancesCompress, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress instances: %w", err)
		}
		raw = decompressed
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode instances: %w", err)
	}
	return id.ParseAll(values)
}

// Receive implements activation.Receiver.
func (s *AuditService) Receive(ctx context.Context, ev activation.Event) error {
	entry, err := s.Entry(ev)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, action, is_active, instance_count, actor,
			instances, instances_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.Action, entry.IsActive, entry.InstanceCount,
		entry.Actor, entry.Instances, entry.InstancesCompress, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History retrieves the latest audit entries for a record type.
func (s *AuditService) History(ctx context.Context, entityType string, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, entity_type, action, is_active, instance_count, actor,
		       instances, instances_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.Action, &e.IsActive, &e.InstanceCount, &e.Actor,
			&e.Instances, &e.InstancesCompress, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

var _ activation.Receiver = (*AuditService)(nil)
