package repair

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	KitchenTypesCollection = "kitchen_types"
	RestaurantsCollection  = "restaurants"
)

// KitchenType is a cuisine reference record. ID holds the raw stored value so
// malformed identifiers of any BSON type can be detected and deleted.
type KitchenType struct {
	ID          any       `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt,omitempty"`
	LastUpdate  time.Time `json:"lastUpdate" bson:"lastUpdate,omitempty"`
}

// KitchenTypeRef is the denormalized copy of a KitchenType embedded in a Restaurant.
type KitchenTypeRef struct {
	ID    any    `json:"id" bson:"id,omitempty"`
	Name  string `json:"name" bson:"name,omitempty"`
	Extra bson.M `json:"-" bson:",inline"`
}

// Restaurant is the root record. Fields the repair does not touch land in Extra.
// Source keeps the stored document when the record was read from a database so
// the store can patch identifiers into it instead of re-encoding the struct.
type Restaurant struct {
	ID          any             `json:"id" bson:"_id"`
	Name        string          `json:"name" bson:"name,omitempty"`
	KitchenType *KitchenTypeRef `json:"kitchenType,omitempty" bson:"kitchenType,omitempty"`
	Menu        []MenuCategory  `json:"menu,omitempty" bson:"menu,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" bson:"createdAt,omitempty"`
	LastUpdate  time.Time       `json:"lastUpdate" bson:"lastUpdate,omitempty"`
	Extra       bson.M          `json:"-" bson:",inline"`
	Source      bson.Raw        `json:"-" bson:"-"`
}

// MenuCategory groups menu items inside a restaurant.
type MenuCategory struct {
	ID    any        `json:"id" bson:"id,omitempty"`
	Name  string     `json:"name" bson:"name,omitempty"`
	Items []MenuItem `json:"items,omitempty" bson:"items,omitempty"`
	Extra bson.M     `json:"-" bson:",inline"`
}

// MenuItem is a single dish inside a MenuCategory.
type MenuItem struct {
	ID    any    `json:"id" bson:"id,omitempty"`
	Name  string `json:"name" bson:"name,omitempty"`
	Extra bson.M `json:"-" bson:",inline"`
}

// Clone returns a copy of r whose kitchen type reference and menu can be
// mutated without touching r. Empty slices stay empty rather than nil. Extra
// maps and Source are shared.
func (r Restaurant) Clone() Restaurant {
	c := r
	if r.KitchenType != nil {
		ref := *r.KitchenType
		c.KitchenType = &ref
	}
	if r.Menu != nil {
		c.Menu = make([]MenuCategory, len(r.Menu))
		for i, cat := range r.Menu {
			c.Menu[i] = cat
			if cat.Items != nil {
				c.Menu[i].Items = make([]MenuItem, len(cat.Items))
				copy(c.Menu[i].Items, cat.Items)
			}
		}
	}
	return c
}

// DisplayName returns the restaurant name or a placeholder for log lines.
func (r Restaurant) DisplayName() string {
	if r.Name == "" {
		return "Sem nome"
	}
	return r.Name
}

// Counts is the raw result of the final verification queries.
type Counts struct {
	KitchenTypes          int64
	Restaurants           int64
	InvalidKitchenTypeIDs int64
	InvalidRestaurantIDs  int64
}
