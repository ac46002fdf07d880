package inventory

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const (
	dateLayout = "2006-01-02"
	// MaxSpoilageImages caps the evidence photos accepted per request.
	MaxSpoilageImages = 5

	// MaxBatchSize and MaxQuantityReceived keep the gross quantity of any
	// batch (at most 10^18 grams) inside int64.
	MaxBatchSize        = 1_000_000
	MaxQuantityReceived = 1_000_000_000
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// CategoryForm is the raw category form.
type CategoryForm struct {
	Name string `form:"name" validate:"required,min=3,max=100"`
}

// FruitForm is the raw fruit form.
type FruitForm struct {
	Name        string `form:"name" validate:"required,min=3,max=100"`
	Origin      string `form:"origin" validate:"required,max=100"`
	Description string `form:"description" validate:"max=2000"`
	Category    string `form:"category" validate:"omitempty,mongodb"`
}

// BatchForm is the raw fruit instance form.
type BatchForm struct {
	Fruit            string `form:"fruit" validate:"required,mongodb"`
	Arrival          string `form:"arrival" validate:"required,datetime=2006-01-02"`
	Unit             string `form:"unit" validate:"required,oneof=mass count"`
	Size             string `form:"size" validate:"required,numeric"`
	PurchasePrice    string `form:"purchase_price" validate:"omitempty,numeric"`
	QuantityReceived string `form:"quantity_received" validate:"required,number"`
}

// SaleForm is the raw sale form. Amount is in the batch base unit.
type SaleForm struct {
	Date   string `form:"date" validate:"required,datetime=2006-01-02"`
	Amount string `form:"amount" validate:"required,number"`
	Price  string `form:"price" validate:"required,numeric"`
}

// SpoilageForm is the raw spoilage form. Amount is in the batch base unit.
type SpoilageForm struct {
	Date           string   `form:"date" validate:"required,datetime=2006-01-02"`
	Amount         string   `form:"amount" validate:"required,number"`
	ExistingImages []string `form:"existing_images"`
}

var labels = map[string]string{
	"name":              "Name",
	"origin":            "Origin",
	"description":       "Description",
	"category":          "Category",
	"fruit":             "Fruit",
	"arrival":           "Arrival date",
	"unit":              "Quantity unit",
	"size":              "Size",
	"purchase_price":    "Purchase price",
	"quantity_received": "Quantity received",
	"date":              "Date",
	"amount":            "Amount",
	"price":             "Price",
}

// CategoryInput is a validated category form.
type CategoryInput struct {
	Name string
}

// FruitInput is a validated fruit form. CategoryID is nil when no category was chosen.
type FruitInput struct {
	Name        string
	Origin      string
	Description string
	CategoryID  *primitive.ObjectID
}

// BatchInput is a validated fruit instance form.
type BatchInput struct {
	FruitID          primitive.ObjectID
	Arrival          time.Time
	Unit             models.QuantityUnit
	Size             float64
	PriceCents       int64
	QuantityReceived int64
}

// SaleInput is a validated sale form. Amount is in base units.
type SaleInput struct {
	Date       time.Time
	Amount     int64
	PriceCents int64
}

// SpoilageInput is a validated spoilage form. ExistingImages lists the stored
// image URLs the user chose to keep.
type SpoilageInput struct {
	Date           time.Time
	Amount         int64
	ExistingImages []string
}

// Parse trims and validates the form.
func (f *CategoryForm) Parse() (CategoryInput, error) {
	f.Name = strings.TrimSpace(f.Name)
	if verr := check(f); !verr.Empty() {
		return CategoryInput{}, verr
	}
	return CategoryInput{Name: f.Name}, nil
}

// Parse trims and validates the form and resolves the optional category id.
func (f *FruitForm) Parse() (FruitInput, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Origin = strings.TrimSpace(f.Origin)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	if verr := check(f); !verr.Empty() {
		return FruitInput{}, verr
	}

	in := FruitInput{Name: f.Name, Origin: f.Origin, Description: f.Description}
	if f.Category != "" {
		id, _ := primitive.ObjectIDFromHex(f.Category)
		in.CategoryID = &id
	}
	return in, nil
}

// Parse validates the form and converts size, price and quantity. Size and
// quantity received are bounded by MaxBatchSize and MaxQuantityReceived.
func (f *BatchForm) Parse() (BatchInput, error) {
	f.Fruit = strings.TrimSpace(f.Fruit)
	f.Arrival = strings.TrimSpace(f.Arrival)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Size = strings.TrimSpace(f.Size)
	f.PurchasePrice = strings.TrimSpace(f.PurchasePrice)
	f.QuantityReceived = strings.TrimSpace(f.QuantityReceived)

	verr := check(f)
	var in BatchInput

	if _, ok := verr.Fields["fruit"]; !ok {
		in.FruitID, _ = primitive.ObjectIDFromHex(f.Fruit)
	}
	if _, ok := verr.Fields["arrival"]; !ok {
		in.Arrival, _ = time.Parse(dateLayout, f.Arrival)
	}
	in.Unit = models.QuantityUnit(f.Unit)

	if _, ok := verr.Fields["size"]; !ok {
		size, err := strconv.ParseFloat(f.Size, 64)
		switch {
		case err != nil || size <= 0:
			verr.Add("size", "Size must be a positive number.")
		case size > MaxBatchSize:
			verr.Add("size", fmt.Sprintf("Size must be at most %d.", MaxBatchSize))
		case in.Unit == models.UnitCount && size != math.Trunc(size):
			verr.Add("size", "Size must be a whole number of pieces.")
		default:
			in.Size = size
		}
	}
	if _, ok := verr.Fields["purchase_price"]; !ok && f.PurchasePrice != "" {
		cents, err := parseCents(f.PurchasePrice)
		if err != nil {
			verr.Add("purchase_price", "Purchase price must be a non-negative amount.")
		}
		in.PriceCents = cents
	}
	if _, ok := verr.Fields["quantity_received"]; !ok {
		qty, err := strconv.ParseInt(f.QuantityReceived, 10, 64)
		if err != nil || qty > MaxQuantityReceived {
			verr.Add("quantity_received", fmt.Sprintf("Quantity received must be at most %d.", MaxQuantityReceived))
		}
		in.QuantityReceived = qty
	}

	if !verr.Empty() {
		return BatchInput{}, verr
	}
	return in, nil
}

// Parse validates the form. The amount must be a positive whole number.
func (f *SaleForm) Parse() (SaleInput, error) {
	f.Date = strings.TrimSpace(f.Date)
	f.Amount = strings.TrimSpace(f.Amount)
	f.Price = strings.TrimSpace(f.Price)

	verr := check(f)
	var in SaleInput

	if _, ok := verr.Fields["date"]; !ok {
		in.Date, _ = time.Parse(dateLayout, f.Date)
	}
	if _, ok := verr.Fields["amount"]; !ok {
		in.Amount = parseAmount(f.Amount, verr)
	}
	if _, ok := verr.Fields["price"]; !ok {
		cents, err := parseCents(f.Price)
		if err != nil {
			verr.Add("price", "Price must be a non-negative amount.")
		}
		in.PriceCents = cents
	}

	if !verr.Empty() {
		return SaleInput{}, verr
	}
	return in, nil
}

// Parse validates the form and flattens the kept image URLs.
func (f *SpoilageForm) Parse() (SpoilageInput, error) {
	f.Date = strings.TrimSpace(f.Date)
	f.Amount = strings.TrimSpace(f.Amount)

	verr := check(f)
	in := SpoilageInput{}

	if _, ok := verr.Fields["date"]; !ok {
		in.Date, _ = time.Parse(dateLayout, f.Date)
	}
	if _, ok := verr.Fields["amount"]; !ok {
		in.Amount = parseAmount(f.Amount, verr)
	}
	for _, url := range f.ExistingImages {
		for _, part := range strings.Split(url, ",") {
			if part = strings.TrimSpace(part); part != "" {
				in.ExistingImages = append(in.ExistingImages, part)
			}
		}
	}

	if !verr.Empty() {
		return SpoilageInput{}, verr
	}
	return in, nil
}

// check runs the declared rules and always returns a non-nil error holder.
func check(form interface{}) *models.ValidationError {
	verr := &models.ValidationError{Fields: map[string]string{}}

	err := validate.Struct(form)
	if err == nil {
		return verr
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add("form", "Form could not be validated.")
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " must be specified."
	case "min":
		return fmt.Sprintf("%s must contain at least %s characters.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must contain at most %s characters.", label, fe.Param())
	case "mongodb":
		return label + " is not a valid reference."
	case "datetime":
		return label + " must be a valid date (YYYY-MM-DD)."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, fe.Param())
	case "numeric":
		return label + " must be a number."
	case "number":
		return label + " must be a whole number."
	default:
		return label + " is invalid."
	}
}

func parseAmount(raw string, verr *models.ValidationError) int64 {
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		verr.Add("amount", "Amount must be a positive whole number.")
		return 0
	}
	return amount
}

func parseCents(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", raw)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// FormatCents renders cents as a decimal string for form values.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// CategoryFormFrom prefills the category update form.
func CategoryFormFrom(c models.Category) CategoryForm {
	return CategoryForm{Name: c.Name}
}

// FruitFormFrom prefills the fruit update form.
func FruitFormFrom(f models.Fruit) FruitForm {
	form := FruitForm{Name: f.Name, Origin: f.Origin, Description: f.Description}
	if f.CategoryID != nil {
		form.Category = f.CategoryID.Hex()
	}
	return form
}

// BatchFormFrom prefills the fruit instance update form.
func BatchFormFrom(b models.FruitBatch) BatchForm {
	form := BatchForm{
		Fruit:            b.FruitID.Hex(),
		Arrival:          b.Arrival.Format(dateLayout),
		Unit:             string(b.Unit),
		Size:             decimal.NewFromFloat(b.Size).String(),
		QuantityReceived: strconv.FormatInt(b.Stock.QuantityReceived, 10),
	}
	if b.PriceCents > 0 {
		form.PurchasePrice = FormatCents(b.PriceCents)
	}
	return form
}

// SaleFormFrom prefills the sale update form.
func SaleFormFrom(s models.Sale) SaleForm {
	return SaleForm{
		Date:   s.Date.Format(dateLayout),
		Amount: strconv.FormatInt(s.Amount, 10),
		Price:  FormatCents(s.PriceCents),
	}
}

// SpoilageFormFrom prefills the spoilage update form with its stored images checked.
func SpoilageFormFrom(s models.Spoilage) SpoilageForm {
	return SpoilageForm{
		Date:           s.Date.Format(dateLayout),
		Amount:         strconv.FormatInt(s.Amount, 10),
		ExistingImages: append([]string(nil), s.ImageURLs...),
	}
}
