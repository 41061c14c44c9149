// Package model defines domain types used by the service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeltaKind classifies a delta file by what it adjusts.
type DeltaKind string

const (
	KindPrices   DeltaKind = "prices"
	KindRemnants DeltaKind = "remnants"
	KindUnknown  DeltaKind = "unknown"
)

// Entry represents one item at one stocking location.
//
// Price fields are per weight unit (T, tonne) and per length unit (M, metre),
// each with up to two volume-discount tiers (limit = tier threshold quantity,
// price = tier unit price). Stock fields are on-hand and incoming quantities.
// Every numeric field is kept >= 0; additive updates clamp at zero.
type Entry struct {
	ItemID  string `json:"item_id"`
	StockID string `json:"stock_id"`

	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
	StockName string `json:"stock_name,omitempty"`

	PriceT       decimal.Decimal `json:"price_t"`
	PriceLimitT1 decimal.Decimal `json:"price_limit_t1"`
	PriceT1      decimal.Decimal `json:"price_t1"`
	PriceLimitT2 decimal.Decimal `json:"price_limit_t2"`
	PriceT2      decimal.Decimal `json:"price_t2"`
	PriceM       decimal.Decimal `json:"price_m"`
	PriceLimitM1 decimal.Decimal `json:"price_limit_m1"`
	PriceM1      decimal.Decimal `json:"price_m1"`
	PriceLimitM2 decimal.Decimal `json:"price_limit_m2"`
	PriceM2      decimal.Decimal `json:"price_m2"`

	InStockT    float64 `json:"in_stock_t"`
	InStockM    float64 `json:"in_stock_m"`
	SoonArriveT float64 `json:"soon_arrive_t"`
	SoonArriveM float64 `json:"soon_arrive_m"`
}

// DeltaRecord is one line item inside a delta file. All numeric fields are
// signed adjustments; absent fields decode to zero and adjust nothing.
type DeltaRecord struct {
	ID      string `json:"ID"`
	IDStock string `json:"IDStock"`

	PriceT       decimal.Decimal `json:"PriceT"`
	PriceLimitT1 decimal.Decimal `json:"PriceLimitT1"`
	PriceT1      decimal.Decimal `json:"PriceT1"`
	PriceLimitT2 decimal.Decimal `json:"PriceLimitT2"`
	PriceT2      decimal.Decimal `json:"PriceT2"`
	PriceM       decimal.Decimal `json:"PriceM"`
	PriceLimitM1 decimal.Decimal `json:"PriceLimitM1"`
	PriceM1      decimal.Decimal `json:"PriceM1"`
	PriceLimitM2 decimal.Decimal `json:"PriceLimitM2"`
	PriceM2      decimal.Decimal `json:"PriceM2"`

	InStockT    float64 `json:"InStockT"`
	InStockM    float64 `json:"InStockM"`
	SoonArriveT float64 `json:"SoonArriveT"`
	SoonArriveM float64 `json:"SoonArriveM"`
}

// FieldDeltas carries the signed adjustments the store applies to one entry.
type FieldDeltas struct {
	PriceT       decimal.Decimal
	PriceLimitT1 decimal.Decimal
	PriceT1      decimal.Decimal
	PriceLimitT2 decimal.Decimal
	PriceT2      decimal.Decimal
	PriceM       decimal.Decimal
	PriceLimitM1 decimal.Decimal
	PriceM1      decimal.Decimal
	PriceLimitM2 decimal.Decimal
	PriceM2      decimal.Decimal

	InStockT    float64
	InStockM    float64
	SoonArriveT float64
	SoonArriveM float64
}

// FailReason explains why a single delta record was not applied.
type FailReason string

// ReasonUnknownItem marks a record whose item/location pair is not in the catalog.
const ReasonUnknownItem FailReason = "unknown_item"

// Failure identifies one rejected record within a processed file.
type Failure struct {
	ItemID string     `json:"item_id"`
	Reason FailReason `json:"reason"`
}

// ApplyReport summarizes the outcome of applying one file's records.
type ApplyReport struct {
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// SyncStatus is the process-wide pipeline state.
type SyncStatus struct {
	IsRunning               bool      `json:"is_running"`
	IsProcessing            bool      `json:"is_processing"`
	LastDeltaSyncTime       time.Time `json:"last_delta_sync_time"`
	ProcessedFileCount      int       `json:"processed_file_count"`
	NextScheduledResyncTime time.Time `json:"next_scheduled_resync_time"`
}

// RecentDeltaInfo reports the most recently archived delta files.
type RecentDeltaInfo struct {
	LastSyncTime       time.Time `json:"last_sync_time"`
	ProcessedFileCount int       `json:"processed_file_count"`
	RecentFiles        []string  `json:"recent_files"`
}
