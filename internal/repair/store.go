package repair

import "context"

// Store is the explicit handle the repair pipeline works through.
type Store interface {
	CollectionNames(ctx context.Context) ([]string, error)
	KitchenTypes(ctx context.Context) ([]KitchenType, error)
	Restaurants(ctx context.Context) ([]Restaurant, error)
	InsertKitchenTypes(ctx context.Context, kts []KitchenType) error
	// ReplaceKitchenTypeID removes the record stored under oldID and stores kt
	// under kt.ID.
	ReplaceKitchenTypeID(ctx context.Context, oldID any, kt KitchenType) error
	// SaveRestaurant replaces (or inserts) the restaurant stored under r.ID.
	SaveRestaurant(ctx context.Context, r Restaurant) error
	// ReplaceRestaurantID moves the restaurant stored under oldID to r.ID.
	ReplaceRestaurantID(ctx context.Context, oldID any, r Restaurant) error
	EnsureIndexes(ctx context.Context) error
	Counts(ctx context.Context) (Counts, error)
	// Reset drops every kitchen type and restaurant and inserts kts.
	Reset(ctx context.Context, kts []KitchenType) error
}
