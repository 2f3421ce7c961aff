package repo

import (
	"context"
	"fmt"

	"swipeshop/internal/domain"
	"swipeshop/internal/infra"
	"swipeshop/internal/sqlinline"
)

// AssetLedgerPG implements domain.AssetLedger on PostgreSQL.
type AssetLedgerPG struct {
	sql infra.SQLExecutor
}

// NewAssetLedger constructs a ledger over a marker-checked executor.
func NewAssetLedger(sql infra.SQLExecutor) *AssetLedgerPG {
	return &AssetLedgerPG{sql: sql}
}

// EnsureSchema creates the ledger table when it does not exist yet.
func (r *AssetLedgerPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QEnsureAssetLedger, sqlinline.QEnsureAssetLedgerIndex} {
		if _, err := r.sql.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure asset ledger: %w", err)
		}
	}
	return nil
}

// Record inserts an asset. Re-recording the same id is a no-op.
func (r *AssetLedgerPG) Record(ctx context.Context, a domain.Asset) error {
	if a.ID == "" {
		return fmt.Errorf("%w: asset id is required", domain.ErrInvalidInput)
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertAsset,
		a.ID,
		a.SessionID,
		string(a.Kind),
		a.StorageKey,
		a.PublicURL,
		a.ContentType,
		a.Width,
		a.Height,
		a.Bytes,
		a.CreatedAt,
	)
	return err
}

// ListBySession returns a session's assets oldest first. An empty kind
// matches every kind.
func (r *AssetLedgerPG) ListBySession(ctx context.Context, sessionID string, kind domain.AssetKind) ([]domain.Asset, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAssetsBySession, sessionID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var (
			a    domain.Asset
			kind string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &kind, &a.StorageKey, &a.PublicURL, &a.ContentType, &a.Width, &a.Height, &a.Bytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = domain.AssetKind(kind)
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// CountByKind totals the ledger per asset kind.
func (r *AssetLedgerPG) CountByKind(ctx context.Context) (map[domain.AssetKind]int64, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QCountAssetsByKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.AssetKind]int64)
	for rows.Next() {
		var (
			kind  string
			total int64
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, err
		}
		counts[domain.AssetKind(kind)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

var _ domain.AssetLedger = (*AssetLedgerPG)(nil)
