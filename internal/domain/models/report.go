package models

import "time"

// StockLine summarises the ledger of one batch.
type StockLine struct {
	BatchID       string       `json:"batch_id"`
	Fruit         string       `json:"fruit"`
	Arrival       time.Time    `json:"arrival"`
	Unit          QuantityUnit `json:"unit"`
	Gross         int64        `json:"gross"`
	Sold          int64        `json:"sold"`
	Spoiled       int64        `json:"spoiled"`
	Available     int64        `json:"available"`
	Overallocated bool         `json:"overallocated"`
	// Broken is set when the ledger could not be summed; the totals are then zero.
	Broken bool `json:"broken"`
}

// URL is the detail page of the batch behind the line.
func (l StockLine) URL() string {
	return "/catalog/fruitinstance/" + l.BatchID
}

// ArrivalFormatted renders the arrival date.
func (l StockLine) ArrivalFormatted() string {
	return l.Arrival.Format(displayDateLayout)
}

// Format renders an amount of this line in its unit.
func (l StockLine) Format(amount int64) string {
	return FormatQuantity(l.Unit, amount)
}

// StockReport is the aggregated inventory state at a point in time.
type StockReport struct {
	GeneratedAt   time.Time   `json:"generated_at"`
	Lines         []StockLine `json:"lines"`
	Overallocated int         `json:"overallocated"`
	Broken        int         `json:"broken"`
	SoldGrams     int64       `json:"sold_grams"`
	SoldPieces    int64       `json:"sold_pieces"`
	SpoiledGrams  int64       `json:"spoiled_grams"`
	SpoiledPieces int64       `json:"spoiled_pieces"`
}

// Batches is the number of batches covered by the report.
func (r StockReport) Batches() int {
	return len(r.Lines)
}
