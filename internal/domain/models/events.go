package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sale deducts sold stock from a batch.
type Sale struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BatchID    primitive.ObjectID `bson:"fruit_instance"`
	Date       time.Time          `bson:"date"`
	Amount     int64              `bson:"amount"`
	PriceCents int64              `bson:"price_cents"`
}

// URL is the detail page of the sale.
func (s Sale) URL() string {
	return "/catalog/sale/" + s.ID.Hex()
}

// Price is the unit price of the sale.
func (s Sale) Price() decimal.Decimal {
	return decimal.New(s.PriceCents, -2)
}

// DateFormatted renders the sale date.
func (s Sale) DateFormatted() string {
	return s.Date.Format(displayDateLayout)
}

// Spoilage deducts spoilt stock from a batch and keeps photo evidence.
type Spoilage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	BatchID   primitive.ObjectID `bson:"fruit_instance"`
	Date      time.Time          `bson:"date"`
	Amount    int64              `bson:"amount"`
	ImageURLs []string           `bson:"image_urls,omitempty"`
}

// URL is the detail page of the spoilage.
func (s Spoilage) URL() string {
	return "/catalog/spoilage/" + s.ID.Hex()
}

// DateFormatted renders the spoilage date.
func (s Spoilage) DateFormatted() string {
	return s.Date.Format(displayDateLayout)
}
