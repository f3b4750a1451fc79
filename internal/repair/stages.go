package repair

import (
	"context"
	"fmt"
	"slices"
	"time"
)

const (
	unknownKitchenTypeName        = "Tipo Desconhecido"
	unknownKitchenTypeDescription = "Descrição não disponível"
)

// Snapshot is the state of both collections as read by Discover.
type Snapshot struct {
	Collections     []string
	HasKitchenTypes bool
	HasRestaurants  bool
	KitchenTypes    []KitchenType
	Restaurants     []Restaurant
}

// Discover lists the collections and loads the ones that exist.
func Discover(ctx context.Context, store Store) (Snapshot, error) {
	var snap Snapshot

	names, err := store.CollectionNames(ctx)
	if err != nil {
		return snap, fmt.Errorf("cannot list collections: %w", err)
	}
	snap.Collections = names
	snap.HasKitchenTypes = slices.Contains(names, KitchenTypesCollection)
	snap.HasRestaurants = slices.Contains(names, RestaurantsCollection)

	if snap.HasKitchenTypes {
		snap.KitchenTypes, err = store.KitchenTypes(ctx)
		if err != nil {
			return snap, fmt.Errorf("cannot load kitchen types: %w", err)
		}
	}

	if snap.HasRestaurants {
		snap.Restaurants, err = store.Restaurants(ctx)
		if err != nil {
			return snap, fmt.Errorf("cannot load restaurants: %w", err)
		}
	}

	return snap, nil
}

type kitchenTypeSeed struct {
	name        string
	description string
}

var defaultKitchenTypeSeeds = []kitchenTypeSeed{
	{"Brasileira", "Culinária tradicional brasileira"},
	{"Italiana", "Culinária tradicional italiana"},
	{"Japonesa", "Culinária japonesa autêntica"},
}

var resetKitchenTypeSeeds = []kitchenTypeSeed{
	{"Brasileira", "Culinária tradicional brasileira"},
	{"Italiana", "Culinária tradicional italiana com massas e pizzas"},
	{"Japonesa", "Culinária japonesa autêntica com sushi e yakisoba"},
	{"Mexicana", "Culinária mexicana com tacos e burritos"},
	{"Francesa", "Culinária francesa refinada"},
	{"Chinesa", "Culinária chinesa tradicional"},
	{"Indiana", "Culinária indiana com especiarias"},
	{"Árabe", "Culinária árabe com pratos típicos"},
}

// DefaultKitchenTypes returns the kitchen types provisioned when the
// kitchen_types collection does not exist.
func DefaultKitchenTypes(now time.Time, newID func() string) []KitchenType {
	return buildKitchenTypes(defaultKitchenTypeSeeds, now, newID)
}

// ResetKitchenTypes returns the full catalogue written by a reset.
func ResetKitchenTypes(now time.Time, newID func() string) []KitchenType {
	return buildKitchenTypes(resetKitchenTypeSeeds, now, newID)
}

func buildKitchenTypes(seeds []kitchenTypeSeed, now time.Time, newID func() string) []KitchenType {
	kts := make([]KitchenType, 0, len(seeds))
	for _, s := range seeds {
		kts = append(kts, KitchenType{
			ID:          newID(),
			Name:        s.name,
			Description: s.description,
			CreatedAt:   now,
			LastUpdate:  now,
		})
	}
	return kts
}

// PartitionKitchenTypes splits kts by whether their identifier is canonical.
func PartitionKitchenTypes(kts []KitchenType) (valid, invalid []KitchenType) {
	for _, kt := range kts {
		if IsCanonicalUUID(kt.ID) {
			valid = append(valid, kt)
		} else {
			invalid = append(invalid, kt)
		}
	}
	return valid, invalid
}

// KitchenTypeFix replaces the record stored under OriginalID with Replacement.
type KitchenTypeFix struct {
	OriginalID  any
	Replacement KitchenType
}

// PlanKitchenTypeFixes builds a replacement record for every invalid kitchen type.
func PlanKitchenTypeFixes(invalid []KitchenType, now time.Time, newID func() string) []KitchenTypeFix {
	fixes := make([]KitchenTypeFix, 0, len(invalid))
	for _, kt := range invalid {
		replacement := KitchenType{
			ID:          newID(),
			Name:        kt.Name,
			Description: kt.Description,
			CreatedAt:   kt.CreatedAt,
			LastUpdate:  now,
		}
		if replacement.Name == "" {
			replacement.Name = unknownKitchenTypeName
		}
		if replacement.Description == "" {
			replacement.Description = unknownKitchenTypeDescription
		}
		if replacement.CreatedAt.IsZero() {
			replacement.CreatedAt = now
		}
		fixes = append(fixes, KitchenTypeFix{OriginalID: kt.ID, Replacement: replacement})
	}
	return fixes
}

// ChooseKitchenType picks the kitchen type used to repair a broken restaurant
// reference. A kitchen type named preferred wins; otherwise the first valid one
// in store order is used, which depends on the store's natural order.
func ChooseKitchenType(kts []KitchenType, preferred string) *KitchenType {
	var first *KitchenType
	for i := range kts {
		if !IsCanonicalUUID(kts[i].ID) {
			continue
		}
		if preferred != "" && kts[i].Name == preferred {
			return &kts[i]
		}
		if first == nil {
			first = &kts[i]
		}
	}
	return first
}

// InspectRestaurant lists every identifier problem found in r. An empty result
// means the restaurant is valid.
func InspectRestaurant(r Restaurant) []string {
	var issues []string

	if !IsCanonicalUUID(r.ID) {
		issues = append(issues, "invalid id")
	}

	if r.KitchenType != nil && r.KitchenType.ID != nil && !IsCanonicalUUID(r.KitchenType.ID) {
		issues = append(issues, "invalid kitchen type id")
	}

	for ci, cat := range r.Menu {
		if !IsCanonicalUUID(cat.ID) {
			issues = append(issues, fmt.Sprintf("invalid menu category id at index %d", ci))
		}
		for ii, item := range cat.Items {
			if !IsCanonicalUUID(item.ID) {
				issues = append(issues, fmt.Sprintf("invalid menu item id at index %d.%d", ci, ii))
			}
		}
	}

	return issues
}

// RestaurantFix is the repaired form of one invalid restaurant.
type RestaurantFix struct {
	OriginalID any
	Restaurant Restaurant
	Issues     []string
	Changes    []string
	// Unresolved is set when the kitchen type reference needed repair but no
	// valid kitchen type was available.
	Unresolved bool
}

// IDChanged reports whether the fix moves the restaurant to a new identifier.
func (f RestaurantFix) IDChanged() bool {
	return !IsCanonicalUUID(f.OriginalID)
}

// PlanRestaurantFix repairs a copy of r. It returns false when r has no issues.
// A malformed root id is replaced with DeriveUUID of the original; nested ids
// come from newID.
func PlanRestaurantFix(r Restaurant, kt *KitchenType, now time.Time, newID func() string) (RestaurantFix, bool) {
	issues := InspectRestaurant(r)
	if len(issues) == 0 {
		return RestaurantFix{}, false
	}

	fix := RestaurantFix{
		OriginalID: r.ID,
		Restaurant: r.Clone(),
		Issues:     issues,
	}
	fixed := &fix.Restaurant

	if !IsCanonicalUUID(fixed.ID) {
		fixed.ID = DeriveUUID(r.ID)
		fix.Changes = append(fix.Changes, fmt.Sprintf("id corrected: %s -> %s", describeID(r.ID), describeID(fixed.ID)))
	}

	if fixed.KitchenType != nil && !IsCanonicalUUID(fixed.KitchenType.ID) {
		if kt != nil {
			fixed.KitchenType.ID = kt.ID
			fixed.KitchenType.Name = kt.Name
			fix.Changes = append(fix.Changes, fmt.Sprintf("kitchen type set to %s", kt.Name))
		} else {
			fix.Unresolved = true
		}
	}

	for ci := range fixed.Menu {
		cat := &fixed.Menu[ci]
		if !IsCanonicalUUID(cat.ID) {
			cat.ID = newID()
			fix.Changes = append(fix.Changes, fmt.Sprintf("menu category id corrected: %s", cat.Name))
		}
		for ii := range cat.Items {
			item := &cat.Items[ii]
			if !IsCanonicalUUID(item.ID) {
				item.ID = newID()
				fix.Changes = append(fix.Changes, fmt.Sprintf("menu item id corrected: %s", item.Name))
			}
		}
	}

	fixed.LastUpdate = now
	if fixed.CreatedAt.IsZero() {
		fixed.CreatedAt = now
	}

	return fix, true
}

// PlanRestaurantFixes repairs every invalid restaurant in rs.
func PlanRestaurantFixes(rs []Restaurant, kt *KitchenType, now time.Time, newID func() string) []RestaurantFix {
	var fixes []RestaurantFix
	for _, r := range rs {
		if fix, ok := PlanRestaurantFix(r, kt, now, newID); ok {
			fixes = append(fixes, fix)
		}
	}
	return fixes
}

// Verification summarizes the final state of both collections.
type Verification struct {
	Counts
	Compliant bool
}

// Verify evaluates the final counts.
func Verify(c Counts) Verification {
	return Verification{
		Counts:    c,
		Compliant: c.InvalidKitchenTypeIDs == 0 && c.InvalidRestaurantIDs == 0,
	}
}
