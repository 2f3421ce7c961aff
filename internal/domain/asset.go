package domain

import "time"

// AssetKind enumerates ledger entry types.
type AssetKind string

const (
	AssetKindUpload    AssetKind = "upload"
	AssetKindGenerated AssetKind = "generated"
	AssetKindExport    AssetKind = "export"
)

// Asset is a stored artifact recorded in the asset ledger.
type Asset struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Kind        AssetKind `json:"kind"`
	StorageKey  string    `json:"storage_key"`
	PublicURL   string    `json:"public_url"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Bytes       int64     `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
