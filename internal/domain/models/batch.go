package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const displayDateLayout = "Jan 2, 2006"

// FruitBatch is one received lot of a fruit.
type FruitBatch struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	FruitID    primitive.ObjectID `bson:"fruit"`
	Arrival    time.Time          `bson:"arrival"`
	Unit       QuantityUnit       `bson:"unit"`
	Size       float64            `bson:"size"`
	PriceCents int64              `bson:"purchase_price_cents,omitempty"`
	Stock      Ledger             `bson:"stock"`
	Version    int64              `bson:"version"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

// URL is the detail page of the batch.
func (b FruitBatch) URL() string {
	return "/catalog/fruitinstance/" + b.ID.Hex()
}

// PurchasePrice returns the purchase price per receiving unit.
func (b FruitBatch) PurchasePrice() decimal.Decimal {
	return decimal.New(b.PriceCents, -2)
}

// Gross is the received quantity in base units.
func (b FruitBatch) Gross() (int64, error) {
	return GrossBaseUnits(b.Unit, b.Size, b.Stock.QuantityReceived)
}

// Overallocated reports a negative available quantity, which points at stale or racing deductions.
func (b FruitBatch) Overallocated() bool {
	return b.Stock.Available < 0
}

// ArrivalFormatted renders the arrival date for listings.
func (b FruitBatch) ArrivalFormatted() string {
	return b.Arrival.Format(displayDateLayout)
}

// AvailableFormatted renders the available quantity as "12.5 kg" or "30 pieces".
func (b FruitBatch) AvailableFormatted() string {
	return FormatQuantity(b.Unit, b.Stock.Available)
}

// FormatQuantity renders a base unit amount for humans.
func FormatQuantity(unit QuantityUnit, amount int64) string {
	if unit == UnitMass {
		kg := decimal.New(amount, -3)
		return kg.String() + " kg"
	}
	return strconv.FormatInt(amount, 10) + " pieces"
}

// SizeLabel renders the size per receiving unit.
func (b FruitBatch) SizeLabel() string {
	if b.Unit == UnitMass {
		return fmt.Sprintf("%s kg", decimal.NewFromFloat(b.Size).String())
	}
	return fmt.Sprintf("%s pieces", decimal.NewFromFloat(b.Size).String())
}
