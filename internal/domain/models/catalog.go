package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category groups fruits.
type Category struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name string             `bson:"name" json:"name"`
	// NameKey is the lowercased name used for case-insensitive uniqueness.
	NameKey string `bson:"name_key" json:"-"`
}

// URL is the detail page of the category.
func (c Category) URL() string {
	return "/catalog/category/" + c.ID.Hex()
}

// Fruit is a catalog entry; stock is tracked by its batches.
type Fruit struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Origin      string              `bson:"origin" json:"origin"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	CategoryID  *primitive.ObjectID `bson:"category,omitempty" json:"category,omitempty"`
}

// URL is the detail page of the fruit.
func (f Fruit) URL() string {
	return "/catalog/fruit/" + f.ID.Hex()
}

// HasCategory reports whether the fruit references id.
func (f Fruit) HasCategory(id primitive.ObjectID) bool {
	return f.CategoryID != nil && *f.CategoryID == id
}

// Counts is the dashboard summary of the catalog.
type Counts struct {
	Fruits     int64 `json:"fruits"`
	Categories int64 `json:"categories"`
	Batches    int64 `json:"batches"`
	Sales      int64 `json:"sales"`
	Spoilages  int64 `json:"spoilages"`
}
