package domain

import "context"

// AssetLedger records uploads, generated backgrounds and exports.
type AssetLedger interface {
	Record(ctx context.Context, asset Asset) error
	ListBySession(ctx context.Context, sessionID string, kind AssetKind) ([]Asset, error)
}
