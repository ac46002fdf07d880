package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// QuantityUnit selects how a batch measures its stock.
type QuantityUnit string

const (
	// UnitMass batches declare size in kilograms; amounts are grams.
	UnitMass QuantityUnit = "mass"
	// UnitCount batches declare size in pieces; amounts are pieces.
	UnitCount QuantityUnit = "count"
)

const (
	listSales     = "sales"
	listSpoilages = "spoilages"
)

// Valid reports whether u is a known unit.
func (u QuantityUnit) Valid() bool {
	return u == UnitMass || u == UnitCount
}

// Multiplier converts one unit of size into base units.
func (u QuantityUnit) Multiplier() int64 {
	if u == UnitMass {
		return 1000
	}
	return 1
}

// BaseUnit is the label of the unit deductions are expressed in.
func (u QuantityUnit) BaseUnit() string {
	if u == UnitMass {
		return "g"
	}
	return "pieces"
}

// Deduction is one sale or spoilage amount held by the ledger, keyed by the event id.
type Deduction struct {
	Ref    string `bson:"ref"`
	Amount int64  `bson:"amount"`

	// invalid is set when the stored amount could not be decoded as a number.
	invalid bool
}

// UnmarshalBSON keeps documents with a broken amount readable so that the
// ledger can reject them on recompute instead of silently coercing to zero.
func (d *Deduction) UnmarshalBSON(data []byte) error {
	raw := bson.Raw(data)
	if ref, err := raw.LookupErr("ref"); err == nil {
		if s, ok := ref.StringValueOK(); ok {
			d.Ref = s
		}
	}

	d.Amount = 0
	d.invalid = false

	value, err := raw.LookupErr("amount")
	if err != nil {
		d.invalid = true
		return nil
	}

	switch value.Type {
	case bsontype.Int32:
		d.Amount = int64(value.Int32())
	case bsontype.Int64:
		d.Amount = value.Int64()
	case bsontype.Double:
		f := value.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			d.invalid = true
			return nil
		}
		d.Amount = int64(f)
	default:
		d.invalid = true
	}
	return nil
}

// Ledger is the stock sub-state owned by a batch.
type Ledger struct {
	QuantityReceived int64       `bson:"quantity_received"`
	Sales            []Deduction `bson:"sales"`
	Spoilages        []Deduction `bson:"spoilages"`
	Available        int64       `bson:"available"`
}

// ProposeDeduction is the admission check run before a sale or spoilage is appended.
// It compares against the stored available quantity and never mutates the ledger.
func (l *Ledger) ProposeDeduction(amount int64) error {
	if amount <= 0 {
		return NewValidationError("amount", "Amount must be a positive number.")
	}
	if amount > l.Available {
		return &CapacityExceededError{Requested: amount, Available: l.Available}
	}
	return nil
}

// AppendSale records a sale deduction.
func (l *Ledger) AppendSale(ref string, amount int64) {
	l.Sales = append(l.Sales, Deduction{Ref: ref, Amount: amount})
}

// AppendSpoilage records a spoilage deduction.
func (l *Ledger) AppendSpoilage(ref string, amount int64) {
	l.Spoilages = append(l.Spoilages, Deduction{Ref: ref, Amount: amount})
}

// ReviseSale replaces the amount recorded for a sale. It reports whether ref was found.
func (l *Ledger) ReviseSale(ref string, amount int64) bool {
	return revise(l.Sales, ref, amount)
}

// ReviseSpoilage replaces the amount recorded for a spoilage. It reports whether ref was found.
func (l *Ledger) ReviseSpoilage(ref string, amount int64) bool {
	return revise(l.Spoilages, ref, amount)
}

// RemoveSale drops a sale deduction. It reports whether ref was found.
func (l *Ledger) RemoveSale(ref string) bool {
	var ok bool
	l.Sales, ok = remove(l.Sales, ref)
	return ok
}

// RemoveSpoilage drops a spoilage deduction. It reports whether ref was found.
func (l *Ledger) RemoveSpoilage(ref string) bool {
	var ok bool
	l.Spoilages, ok = remove(l.Spoilages, ref)
	return ok
}

// AmountFor returns the recorded amount for an event id in either list.
func (l *Ledger) AmountFor(ref string) (int64, bool) {
	for _, list := range [][]Deduction{l.Sales, l.Spoilages} {
		for _, d := range list {
			if d.Ref == ref {
				return d.Amount, true
			}
		}
	}
	return 0, false
}

// TotalSales sums the sale deductions.
func (l *Ledger) TotalSales() (int64, error) {
	return sum(listSales, l.Sales)
}

// TotalSpoilages sums the spoilage deductions.
func (l *Ledger) TotalSpoilages() (int64, error) {
	return sum(listSpoilages, l.Spoilages)
}

// TotalDeducted is sales plus spoilages.
func (l *Ledger) TotalDeducted() (int64, error) {
	sales, err := l.TotalSales()
	if err != nil {
		return 0, err
	}
	spoilages, err := l.TotalSpoilages()
	if err != nil {
		return 0, err
	}
	return addChecked(sales, spoilages)
}

// References is the number of events the ledger points at.
func (l *Ledger) References() int {
	return len(l.Sales) + len(l.Spoilages)
}

var maxBaseUnits = decimal.NewFromInt(math.MaxInt64)

// GrossBaseUnits converts size * received into grams or pieces. It fails with
// ErrQuantityOverflow when the product does not fit in an int64.
func GrossBaseUnits(unit QuantityUnit, size float64, received int64) (int64, error) {
	gross := decimal.NewFromFloat(size).
		Mul(decimal.NewFromInt(unit.Multiplier())).
		Mul(decimal.NewFromInt(received)).
		Round(0)
	if gross.GreaterThan(maxBaseUnits) || gross.LessThan(maxBaseUnits.Neg()) {
		return 0, fmt.Errorf("gross of %v x %d %s: %w", size, received, unit.BaseUnit(), ErrQuantityOverflow)
	}
	return gross.IntPart(), nil
}

// RecomputeAvailable derives the available quantity of b from its unit, size,
// received quantity and both deduction lists. Every operation that persists a
// batch calls it right before the write. The result is not floored at zero.
// On error the stored available quantity is left untouched.
func RecomputeAvailable(b *FruitBatch) error {
	if b == nil {
		return fmt.Errorf("recompute available: nil batch")
	}

	deducted, err := b.Stock.TotalDeducted()
	if err != nil {
		return err
	}

	gross, err := GrossBaseUnits(b.Unit, b.Size, b.Stock.QuantityReceived)
	if err != nil {
		return err
	}
	available, err := subChecked(gross, deducted)
	if err != nil {
		return fmt.Errorf("available of %d - %d: %w", gross, deducted, err)
	}
	b.Stock.Available = available
	return nil
}

func sum(list string, entries []Deduction) (total int64, err error) {
	for i, d := range entries {
		if d.invalid {
			return 0, &DataIntegrityError{List: list, Index: i, Ref: d.Ref}
		}
		if total, err = addChecked(total, d.Amount); err != nil {
			return 0, fmt.Errorf("%s deduction #%d: %w", list, i, err)
		}
	}
	return total, nil
}

func addChecked(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrQuantityOverflow
	}
	return a + b, nil
}

func subChecked(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrQuantityOverflow
	}
	return a - b, nil
}

func revise(entries []Deduction, ref string, amount int64) bool {
	for i := range entries {
		if entries[i].Ref == ref {
			entries[i].Amount = amount
			entries[i].invalid = false
			return true
		}
	}
	return false
}

func remove(entries []Deduction, ref string) ([]Deduction, bool) {
	for i := range entries {
		if entries[i].Ref == ref {
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}
	return entries, false
}
