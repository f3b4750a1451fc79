package event

import "time"

const (
	MaintenanceTopic         = "maintenance.identifiers"
	EventIdentifiersRepaired = "maintenance.identifiers.repaired"
)

// IdentifiersRepairedEvent tells the restaurant service that stored identifiers
// changed and cached references should be reloaded.
type IdentifiersRepairedEvent struct {
	EventType             string    `json:"event_type"`
	OccurredAt            time.Time `json:"occurred_at"`
	Database              string    `json:"database"`
	DefaultsCreated       int       `json:"defaults_created"`
	KitchenTypesRepaired  int       `json:"kitchen_types_repaired"`
	RestaurantsRepaired   int       `json:"restaurants_repaired"`
	UnresolvedReferences  int       `json:"unresolved_references"`
	InvalidKitchenTypeIDs int64     `json:"invalid_kitchen_type_ids"`
	InvalidRestaurantIDs  int64     `json:"invalid_restaurant_ids"`
	Compliant             bool      `json:"compliant"`
}
