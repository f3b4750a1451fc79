package mongo

import (
	"fmt"

	"github.com/appetiteclub/idrepair/internal/repair"
	"go.mongodb.org/mongo-driver/bson"
)

// decodeRestaurant decodes raw and keeps a copy of it as the restaurant source.
func decodeRestaurant(raw bson.Raw) (repair.Restaurant, error) {
	var r repair.Restaurant
	if err := bson.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	r.Source = append(bson.Raw(nil), raw...)
	return r, nil
}

// restaurantDocument returns what is written for r. A restaurant read from the
// database is written as its source document with the identifiers, the
// kitchen type reference and the timestamps patched in; everything else keeps
// its stored value and position.
func restaurantDocument(r repair.Restaurant) (interface{}, error) {
	if r.Source == nil {
		return r, nil
	}

	var doc bson.D
	if err := bson.Unmarshal(r.Source, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode stored restaurant: %w", err)
	}

	doc = setField(doc, "_id", r.ID).(bson.D)

	if r.KitchenType != nil {
		if ref, ok := field(doc, "kitchenType"); ok && isDocument(ref) {
			if stored, _ := field(ref, "id"); !repair.IsCanonicalUUID(stored) {
				ref = setField(ref, "id", r.KitchenType.ID)
				ref = setField(ref, "name", r.KitchenType.Name)
				doc = setField(doc, "kitchenType", ref).(bson.D)
			}
		}
	}

	if menuValue, ok := field(doc, "menu"); ok {
		menu := array(menuValue)
		for i := 0; i < len(menu) && i < len(r.Menu); i++ {
			cat := menu[i]
			if !isDocument(cat) {
				continue
			}
			cat = patchID(cat, r.Menu[i].ID)
			if itemsValue, ok := field(cat, "items"); ok {
				items := array(itemsValue)
				for j := 0; j < len(items) && j < len(r.Menu[i].Items); j++ {
					if isDocument(items[j]) {
						items[j] = patchID(items[j], r.Menu[i].Items[j].ID)
					}
				}
			}
			menu[i] = cat
		}
	}

	if createdAt, ok := field(doc, "createdAt"); !ok || createdAt == nil {
		doc = setField(doc, "createdAt", r.CreatedAt).(bson.D)
	}
	doc = setField(doc, "lastUpdate", r.LastUpdate).(bson.D)

	return doc, nil
}

// patchID sets the id of a nested document when the stored one is malformed.
func patchID(v interface{}, id any) interface{} {
	if stored, _ := field(v, "id"); repair.IsCanonicalUUID(stored) {
		return v
	}
	return setField(v, "id", id)
}

func isDocument(v interface{}) bool {
	switch v.(type) {
	case bson.D, bson.M:
		return true
	}
	return false
}

func field(v interface{}, key string) (interface{}, bool) {
	switch doc := v.(type) {
	case bson.D:
		for _, e := range doc {
			if e.Key == key {
				return e.Value, true
			}
		}
	case bson.M:
		value, ok := doc[key]
		return value, ok
	}
	return nil, false
}

// setField replaces key in place or appends it to the end of the document.
func setField(v interface{}, key string, value interface{}) interface{} {
	switch doc := v.(type) {
	case bson.D:
		for i := range doc {
			if doc[i].Key == key {
				doc[i].Value = value
				return doc
			}
		}
		return append(doc, bson.E{Key: key, Value: value})
	case bson.M:
		doc[key] = value
		return doc
	}
	return v
}

// array returns the elements of a BSON array value. Writes to the result are
// visible through v.
func array(v interface{}) []interface{} {
	switch a := v.(type) {
	case bson.A:
		return a
	case []interface{}:
		return a
	}
	return nil
}
