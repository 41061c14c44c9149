// Package source loads the full catalog from the external data export.
package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/kioshini/catalog-sync-service/internal/catalog"
	"github.com/kioshini/catalog-sync-service/internal/model"
)

// Loader reads the full-catalog JSON document the daily resync replaces the
// catalog from.
type Loader struct {
	path string
}

// NewLoader creates a Loader over the given document path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

type itemRow struct {
	ID         string `json:"ID"`
	Name       string `json:"Name"`
	IDCategory string `json:"IDCategory"`
}

type categoryRow struct {
	ID   string `json:"ID"`
	Name string `json:"Name"`
}

type stockRow struct {
	ID   string `json:"ID"`
	Name string `json:"Name"`
}

type priceRow struct {
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
}

type remnantRow struct {
	ID      string `json:"ID"`
	IDStock string `json:"IDStock"`

	InStockT    float64 `json:"InStockT"`
	InStockM    float64 `json:"InStockM"`
	SoonArriveT float64 `json:"SoonArriveT"`
	SoonArriveM float64 `json:"SoonArriveM"`
}

type document struct {
	Items      []itemRow     `json:"Items"`
	Categories []categoryRow `json:"Categories"`
	Stocks     []stockRow    `json:"Stocks"`
	Prices     []priceRow    `json:"Prices"`
	Remnants   []remnantRow  `json:"Remnants"`
}

// Load reads and joins all catalog sections into entries, one per
// item/location pair discovered in the price and remnant sections. Negative
// source values are floored at zero so the store's invariant holds from the
// first read.
func (l *Loader) Load() ([]model.Entry, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog source: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog source: %w", err)
	}

	itemNames := make(map[string]string, len(doc.Items))
	itemCategories := make(map[string]string, len(doc.Items))
	categoryNames := make(map[string]string, len(doc.Categories))
	stockNames := make(map[string]string, len(doc.Stocks))
	for _, c := range doc.Categories {
		categoryNames[c.ID] = c.Name
	}
	for _, it := range doc.Items {
		itemNames[it.ID] = it.Name
		itemCategories[it.ID] = categoryNames[it.IDCategory]
	}
	for _, st := range doc.Stocks {
		stockNames[st.ID] = st.Name
	}

	type pair struct{ item, stock string }
	entries := make(map[pair]*model.Entry)
	at := func(item, stock string) *model.Entry {
		p := pair{item, stock}
		e, ok := entries[p]
		if !ok {
			e = &model.Entry{
				ItemID:    item,
				StockID:   stock,
				Name:      itemNames[item],
				Category:  itemCategories[item],
				StockName: stockNames[stock],
			}
			entries[p] = e
		}
		return e
	}

	for _, r := range doc.Prices {
		if r.ID == "" {
			continue
		}
		e := at(r.ID, r.IDStock)
		e.PriceT = floorDec(r.PriceT)
		e.PriceLimitT1 = floorDec(r.PriceLimitT1)
		e.PriceT1 = floorDec(r.PriceT1)
		e.PriceLimitT2 = floorDec(r.PriceLimitT2)
		e.PriceT2 = floorDec(r.PriceT2)
		e.PriceM = floorDec(r.PriceM)
		e.PriceLimitM1 = floorDec(r.PriceLimitM1)
		e.PriceM1 = floorDec(r.PriceM1)
		e.PriceLimitM2 = floorDec(r.PriceLimitM2)
		e.PriceM2 = floorDec(r.PriceM2)
	}
	for _, r := range doc.Remnants {
		if r.ID == "" {
			continue
		}
		e := at(r.ID, r.IDStock)
		e.InStockT = catalog.ClampAdd(0, r.InStockT)
		e.InStockM = catalog.ClampAdd(0, r.InStockM)
		e.SoonArriveT = catalog.ClampAdd(0, r.SoonArriveT)
		e.SoonArriveM = catalog.ClampAdd(0, r.SoonArriveM)
	}

	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out, nil
}

func floorDec(v decimal.Decimal) decimal.Decimal {
	return catalog.ClampAddDecimal(decimal.Zero, v)
}
