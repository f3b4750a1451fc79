package commands

import (
	"context"
	"errors"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/idrepair/internal/repair"
)

// stubStore records the calls the commands make. Collections start missing.
type stubStore struct {
	kitchenTypes []repair.KitchenType
	resetWith    []repair.KitchenType
	inserts      int
	indexed      int
	closed       bool

	ResetFunc func(ctx context.Context, kts []repair.KitchenType) error
}

func (s *stubStore) CollectionNames(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubStore) KitchenTypes(ctx context.Context) ([]repair.KitchenType, error) {
	return s.kitchenTypes, nil
}

func (s *stubStore) Restaurants(ctx context.Context) ([]repair.Restaurant, error) {
	return nil, nil
}

func (s *stubStore) InsertKitchenTypes(ctx context.Context, kts []repair.KitchenType) error {
	s.inserts++
	s.kitchenTypes = append(s.kitchenTypes, kts...)
	return nil
}

func (s *stubStore) ReplaceKitchenTypeID(ctx context.Context, oldID any, kt repair.KitchenType) error {
	return errors.New("unexpected ReplaceKitchenTypeID")
}

func (s *stubStore) SaveRestaurant(ctx context.Context, r repair.Restaurant) error {
	return errors.New("unexpected SaveRestaurant")
}

func (s *stubStore) ReplaceRestaurantID(ctx context.Context, oldID any, r repair.Restaurant) error {
	return errors.New("unexpected ReplaceRestaurantID")
}

func (s *stubStore) EnsureIndexes(ctx context.Context) error {
	s.indexed++
	return nil
}

func (s *stubStore) Counts(ctx context.Context) (repair.Counts, error) {
	return repair.Counts{KitchenTypes: int64(len(s.kitchenTypes))}, nil
}

func (s *stubStore) Reset(ctx context.Context, kts []repair.KitchenType) error {
	if s.ResetFunc != nil {
		return s.ResetFunc(ctx, kts)
	}
	s.resetWith = kts
	s.kitchenTypes = kts
	return nil
}

type stubPublisher struct {
	topic  string
	msg    []byte
	closed bool
	pubErr error
}

func (p *stubPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if p.pubErr != nil {
		return p.pubErr
	}
	p.topic = topic
	p.msg = msg
	return nil
}

func (p *stubPublisher) Close() error {
	p.closed = true
	return nil
}

// testDeps wires store and publisher behind an empty configuration. The
// settings the store was opened with are written to opened.
func testDeps(store *stubStore, publisher *stubPublisher, opened *Settings) deps {
	return deps{
		loadConfig: func() (*apt.Config, error) { return apt.NewConfig(), nil },
		openStore: func(ctx context.Context, s Settings, logger apt.Logger) (repair.Store, func(context.Context) error, error) {
			if opened != nil {
				*opened = s
			}
			return store, func(context.Context) error {
				store.closed = true
				return nil
			}, nil
		},
		newLogger: func(string) apt.Logger { return apt.NewNoopLogger() },
		publisher: func(url string) (Publisher, error) {
			if publisher == nil {
				return nil, errors.New("no publisher")
			}
			return publisher, nil
		},
	}
}
