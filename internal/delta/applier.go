package delta

import (
	"github.com/kioshini/catalog-sync-service/internal/catalog"
	"github.com/kioshini/catalog-sync-service/internal/model"
	"github.com/kioshini/catalog-sync-service/internal/obs"
)

// Applier resolves delta records against the catalog store and applies the
// additive updates. Clamping lives in the store, not here.
type Applier struct {
	store *catalog.Store
}

// NewApplier constructs an Applier over the given store.
func NewApplier(st *catalog.Store) *Applier {
	return &Applier{store: st}
}

// Apply runs every record through the store. A record whose item/location is
// not in the catalog counts as failed and does not stop the rest of the file.
func (a *Applier) Apply(records []model.DeltaRecord, kind model.DeltaKind) model.ApplyReport {
	var rep model.ApplyReport
	for _, rec := range records {
		if !a.store.ApplyAdditive(rec.ID, rec.IDStock, fieldDeltas(rec, kind)) {
			rep.Failed++
			rep.Failures = append(rep.Failures, model.Failure{ItemID: rec.ID, Reason: model.ReasonUnknownItem})
			obs.Logger.Warn("delta_record_skipped",
				"item_id", rec.ID,
				"stock_id", rec.IDStock,
				"reason", string(model.ReasonUnknownItem),
			)
			continue
		}
		rep.Succeeded++
	}
	return rep
}

// fieldDeltas maps a record onto the store's update shape. Price files only
// touch price fields, remnant files only stock fields, whatever else the
// record happens to carry.
func fieldDeltas(rec model.DeltaRecord, kind model.DeltaKind) model.FieldDeltas {
	var d model.FieldDeltas
	switch kind {
	case model.KindPrices:
		d.PriceT = rec.PriceT
		d.PriceLimitT1 = rec.PriceLimitT1
		d.PriceT1 = rec.PriceT1
		d.PriceLimitT2 = rec.PriceLimitT2
		d.PriceT2 = rec.PriceT2
		d.PriceM = rec.PriceM
		d.PriceLimitM1 = rec.PriceLimitM1
		d.PriceM1 = rec.PriceM1
		d.PriceLimitM2 = rec.PriceLimitM2
		d.PriceM2 = rec.PriceM2
	case model.KindRemnants:
		d.InStockT = rec.InStockT
		d.InStockM = rec.InStockM
		d.SoonArriveT = rec.SoonArriveT
		d.SoonArriveM = rec.SoonArriveM
	}
	return d
}
