package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/idrepair/internal/repair"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultURL      = "mongodb://localhost:27017"
	DefaultDatabase = "tech_challenge_restaurants"
)

// Config holds the connection settings for Store.
type Config struct {
	URL      string
	Database string
}

var _ repair.Store = (*Store)(nil)

// Store implements repair.Store on top of a MongoDB database.
type Store struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database
	logger apt.Logger

	// transactional is set when the deployment is a replica set or sharded
	// cluster, the only topologies that accept multi-document transactions.
	transactional bool
}

// NewStore creates a store. Start must be called before use.
func NewStore(cfg Config, logger apt.Logger) *Store {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Store{
		cfg:    cfg,
		logger: logger,
	}
}

// Start connects to MongoDB and probes the deployment topology.
func (s *Store) Start(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(s.cfg.URL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	s.client = client
	s.db = client.Database(s.cfg.Database)

	var hello bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		s.logger.Info("cannot probe deployment, transactions disabled", "error", err)
	} else {
		_, replicaSet := hello["setName"]
		msg, _ := hello["msg"].(string)
		s.transactional = replicaSet || msg == "isdbgrid"
	}

	s.logger.Infof("Connected to MongoDB database: %s", s.cfg.Database)
	if !s.transactional {
		s.logger.Info("⚠️  standalone server, identifier replacements are not atomic")
	}
	return nil
}

// Stop closes the MongoDB connection.
func (s *Store) Stop(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		s.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

// Transactional reports whether identifier replacements run atomically.
func (s *Store) Transactional() bool {
	return s.transactional
}

func (s *Store) kitchenTypes() *mongo.Collection {
	return s.db.Collection(repair.KitchenTypesCollection)
}

func (s *Store) restaurants() *mongo.Collection {
	return s.db.Collection(repair.RestaurantsCollection)
}

// CollectionNames lists the collections of the configured database.
func (s *Store) CollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("could not list collections: %w", err)
	}
	return names, nil
}

// KitchenTypes returns every kitchen type in natural order.
func (s *Store) KitchenTypes(ctx context.Context) ([]repair.KitchenType, error) {
	cursor, err := s.kitchenTypes().Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("could not list kitchen types: %w", err)
	}
	defer cursor.Close(ctx)

	var kts []repair.KitchenType
	for cursor.Next(ctx) {
		var kt repair.KitchenType
		if err := cursor.Decode(&kt); err != nil {
			return nil, fmt.Errorf("could not decode kitchen type: %w", err)
		}
		kts = append(kts, kt)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return kts, nil
}

// Restaurants returns every restaurant in natural order.
func (s *Store) Restaurants(ctx context.Context) ([]repair.Restaurant, error) {
	cursor, err := s.restaurants().Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("could not list restaurants: %w", err)
	}
	defer cursor.Close(ctx)

	var rs []repair.Restaurant
	for cursor.Next(ctx) {
		r, err := decodeRestaurant(cursor.Current)
		if err != nil {
			return nil, fmt.Errorf("could not decode restaurant: %w", err)
		}
		rs = append(rs, r)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return rs, nil
}

// InsertKitchenTypes inserts kts in one batch.
func (s *Store) InsertKitchenTypes(ctx context.Context, kts []repair.KitchenType) error {
	if len(kts) == 0 {
		return nil
	}
	docs := make([]interface{}, len(kts))
	for i := range kts {
		docs[i] = kts[i]
	}
	if _, err := s.kitchenTypes().InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("kitchen type already exists: %w", err)
		}
		return fmt.Errorf("could not insert kitchen types: %w", err)
	}
	return nil
}

// ReplaceKitchenTypeID deletes the kitchen type stored under oldID and inserts
// kt. The old record goes first so the unique name index is never violated.
func (s *Store) ReplaceKitchenTypeID(ctx context.Context, oldID any, kt repair.KitchenType) error {
	return s.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.kitchenTypes().DeleteOne(ctx, bson.M{"_id": oldID}); err != nil {
			return fmt.Errorf("could not delete kitchen type: %w", err)
		}
		if _, err := s.kitchenTypes().InsertOne(ctx, kt); err != nil {
			return fmt.Errorf("could not insert kitchen type: %w", err)
		}
		return nil
	})
}

// SaveRestaurant replaces the restaurant stored under r.ID, inserting it when
// missing.
func (s *Store) SaveRestaurant(ctx context.Context, r repair.Restaurant) error {
	doc, err := restaurantDocument(r)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": r.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.restaurants().ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("could not save restaurant: %w", err)
	}
	return nil
}

// ReplaceRestaurantID stores r under its new identifier and removes the
// document kept under oldID. MongoDB does not allow _id to change in place.
// Without transactions the insert runs first, so a crash leaves a duplicate
// rather than losing the restaurant. Replacement ids are derived from oldID, so
// the next run finds that duplicate under r.ID, keeps it and only deletes the
// original.
func (s *Store) ReplaceRestaurantID(ctx context.Context, oldID any, r repair.Restaurant) error {
	doc, err := restaurantDocument(r)
	if err != nil {
		return err
	}
	return s.inTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.restaurants().CountDocuments(ctx, bson.M{"_id": r.ID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("could not look up restaurant: %w", err)
		}
		if stored > 0 {
			s.logger.Info("restaurant already stored under its new id, removing the original", "id", r.ID)
		} else if _, err := s.restaurants().InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("could not insert restaurant: %w", err)
		}
		if _, err := s.restaurants().DeleteOne(ctx, bson.M{"_id": oldID}); err != nil {
			return fmt.Errorf("could not delete restaurant: %w", err)
		}
		return nil
	})
}

// EnsureIndexes creates the lookup indexes. Existing indexes are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	nameIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.kitchenTypes().Indexes().CreateOne(ctx, nameIndex); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("kitchen type names are not unique, cannot create name index: %w", err)
		}
		return fmt.Errorf("cannot create kitchen_types.name index: %w", err)
	}

	restaurantIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "kitchenType.id", Value: 1}}},
		{Keys: bson.D{{Key: "kitchenType.name", Value: 1}}},
	}
	if _, err := s.restaurants().Indexes().CreateMany(ctx, restaurantIndexes); err != nil {
		return fmt.Errorf("cannot create restaurants indexes: %w", err)
	}

	return nil
}

// Counts runs the final verification queries.
func (s *Store) Counts(ctx context.Context) (repair.Counts, error) {
	var c repair.Counts
	var err error

	invalidID := bson.M{"_id": bson.M{"$not": primitive.Regex{Pattern: repair.CanonicalUUIDPattern}}}

	if c.KitchenTypes, err = s.kitchenTypes().CountDocuments(ctx, bson.D{}); err != nil {
		return c, fmt.Errorf("could not count kitchen types: %w", err)
	}
	if c.Restaurants, err = s.restaurants().CountDocuments(ctx, bson.D{}); err != nil {
		return c, fmt.Errorf("could not count restaurants: %w", err)
	}
	if c.InvalidKitchenTypeIDs, err = s.kitchenTypes().CountDocuments(ctx, invalidID); err != nil {
		return c, fmt.Errorf("could not count invalid kitchen types: %w", err)
	}
	if c.InvalidRestaurantIDs, err = s.restaurants().CountDocuments(ctx, invalidID); err != nil {
		return c, fmt.Errorf("could not count invalid restaurants: %w", err)
	}

	return c, nil
}

// Reset removes every kitchen type and restaurant and inserts kts.
func (s *Store) Reset(ctx context.Context, kts []repair.KitchenType) error {
	kitchenResult, err := s.kitchenTypes().DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("could not delete kitchen types: %w", err)
	}
	s.logger.Info("🗑️  Removed kitchen types", "count", kitchenResult.DeletedCount)

	restaurantResult, err := s.restaurants().DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("could not delete restaurants: %w", err)
	}
	s.logger.Info("🗑️  Removed restaurants", "count", restaurantResult.DeletedCount)

	return s.InsertKitchenTypes(ctx, kts)
}

// inTransaction runs fn inside a transaction when the deployment supports it
// and falls back to running it directly otherwise.
func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactional {
		s.logger.Debug("transactions unavailable, applying non-atomic replacement")
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
