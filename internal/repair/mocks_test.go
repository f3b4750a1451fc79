package repair

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// fakeStore is an in-memory Store that mimics the MongoDB behaviour the
// pipeline relies on: _id uniqueness, upserts, implicit collection creation and
// the unique kitchen type name index.
type fakeStore struct {
	collections  map[string]bool
	kitchenTypes []KitchenType
	restaurants  []Restaurant
	indexed      bool
	writes       int

	InsertKitchenTypesFunc   func(ctx context.Context, kts []KitchenType) error
	ReplaceKitchenTypeIDFunc func(ctx context.Context, oldID any, kt KitchenType) error
	SaveRestaurantFunc       func(ctx context.Context, r Restaurant) error
	ReplaceRestaurantIDFunc  func(ctx context.Context, oldID any, r Restaurant) error
	DeleteRestaurantFunc     func(ctx context.Context, id any) error
	EnsureIndexesFunc        func(ctx context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string]bool)}
}

// withKitchenTypes seeds the kitchen_types collection, creating it even when
// kts is empty.
func (f *fakeStore) withKitchenTypes(kts ...KitchenType) *fakeStore {
	f.collections[KitchenTypesCollection] = true
	f.kitchenTypes = append(f.kitchenTypes, kts...)
	return f
}

func (f *fakeStore) withRestaurants(rs ...Restaurant) *fakeStore {
	f.collections[RestaurantsCollection] = true
	f.restaurants = append(f.restaurants, rs...)
	return f
}

func idKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}

func (f *fakeStore) CollectionNames(ctx context.Context) ([]string, error) {
	var names []string
	for _, name := range []string{KitchenTypesCollection, RestaurantsCollection} {
		if f.collections[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *fakeStore) KitchenTypes(ctx context.Context) ([]KitchenType, error) {
	return append([]KitchenType(nil), f.kitchenTypes...), nil
}

func (f *fakeStore) Restaurants(ctx context.Context) ([]Restaurant, error) {
	rs := make([]Restaurant, len(f.restaurants))
	for i, r := range f.restaurants {
		rs[i] = r.Clone()
	}
	return rs, nil
}

func (f *fakeStore) insertKitchenType(kt KitchenType) error {
	for _, existing := range f.kitchenTypes {
		if idKey(existing.ID) == idKey(kt.ID) {
			return errors.New("duplicate key: _id")
		}
		if f.indexed && existing.Name == kt.Name {
			return errors.New("duplicate key: name")
		}
	}
	f.collections[KitchenTypesCollection] = true
	f.kitchenTypes = append(f.kitchenTypes, kt)
	f.writes++
	return nil
}

func (f *fakeStore) InsertKitchenTypes(ctx context.Context, kts []KitchenType) error {
	if f.InsertKitchenTypesFunc != nil {
		return f.InsertKitchenTypesFunc(ctx, kts)
	}
	for _, kt := range kts {
		if err := f.insertKitchenType(kt); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) ReplaceKitchenTypeID(ctx context.Context, oldID any, kt KitchenType) error {
	if f.ReplaceKitchenTypeIDFunc != nil {
		return f.ReplaceKitchenTypeIDFunc(ctx, oldID, kt)
	}
	for i, existing := range f.kitchenTypes {
		if idKey(existing.ID) == idKey(oldID) {
			f.kitchenTypes = append(f.kitchenTypes[:i], f.kitchenTypes[i+1:]...)
			f.writes++
			break
		}
	}
	return f.insertKitchenType(kt)
}

func (f *fakeStore) SaveRestaurant(ctx context.Context, r Restaurant) error {
	if f.SaveRestaurantFunc != nil {
		return f.SaveRestaurantFunc(ctx, r)
	}
	f.collections[RestaurantsCollection] = true
	f.writes++
	for i, existing := range f.restaurants {
		if idKey(existing.ID) == idKey(r.ID) {
			f.restaurants[i] = r.Clone()
			return nil
		}
	}
	f.restaurants = append(f.restaurants, r.Clone())
	return nil
}

// ReplaceRestaurantID keeps a restaurant already stored under r.ID, as left
// by an interrupted earlier replacement, and only removes the original.
func (f *fakeStore) ReplaceRestaurantID(ctx context.Context, oldID any, r Restaurant) error {
	if f.ReplaceRestaurantIDFunc != nil {
		return f.ReplaceRestaurantIDFunc(ctx, oldID, r)
	}
	exists := false
	for _, existing := range f.restaurants {
		if idKey(existing.ID) == idKey(r.ID) {
			exists = true
			break
		}
	}
	if !exists {
		f.restaurants = append(f.restaurants, r.Clone())
		f.writes++
	}
	if f.DeleteRestaurantFunc != nil {
		if err := f.DeleteRestaurantFunc(ctx, oldID); err != nil {
			return err
		}
	}
	for i, existing := range f.restaurants {
		if idKey(existing.ID) == idKey(oldID) {
			f.restaurants = append(f.restaurants[:i], f.restaurants[i+1:]...)
			f.writes++
			break
		}
	}
	return nil
}

func (f *fakeStore) EnsureIndexes(ctx context.Context) error {
	if f.EnsureIndexesFunc != nil {
		return f.EnsureIndexesFunc(ctx)
	}
	seen := make(map[string]bool)
	for _, kt := range f.kitchenTypes {
		if seen[kt.Name] {
			return fmt.Errorf("duplicate key: name %q", kt.Name)
		}
		seen[kt.Name] = true
	}
	f.collections[KitchenTypesCollection] = true
	f.collections[RestaurantsCollection] = true
	f.indexed = true
	f.writes++
	return nil
}

func (f *fakeStore) Counts(ctx context.Context) (Counts, error) {
	c := Counts{
		KitchenTypes: int64(len(f.kitchenTypes)),
		Restaurants:  int64(len(f.restaurants)),
	}
	for _, kt := range f.kitchenTypes {
		if !IsCanonicalUUID(kt.ID) {
			c.InvalidKitchenTypeIDs++
		}
	}
	for _, r := range f.restaurants {
		if !IsCanonicalUUID(r.ID) {
			c.InvalidRestaurantIDs++
		}
	}
	return c, nil
}

func (f *fakeStore) Reset(ctx context.Context, kts []KitchenType) error {
	f.kitchenTypes = nil
	f.restaurants = nil
	return f.InsertKitchenTypes(ctx, kts)
}

func (f *fakeStore) restaurantByName(name string) (Restaurant, bool) {
	for _, r := range f.restaurants {
		if r.Name == name {
			return r, true
		}
	}
	return Restaurant{}, false
}

// sequentialIDs returns a generator of distinct canonical UUIDs.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
