package repair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
)

// Options tunes a repair pass.
type Options struct {
	// DryRun plans every repair without writing to the store.
	DryRun bool
	// DefaultKitchenType names the kitchen type assigned to restaurants whose
	// reference is broken. Empty means the first valid one.
	DefaultKitchenType string
	Now                func() time.Time
	NewID              func() string
}

// Report is the outcome of one repair pass.
type Report struct {
	DryRun               bool
	DefaultsCreated      int
	KitchenTypesFound    int
	KitchenTypesInvalid  int
	KitchenTypesRepaired int
	RestaurantsFound     int
	RestaurantsInvalid   int
	RestaurantsRepaired  int
	UnresolvedReferences int
	IndexesEnsured       bool
	Verification         Verification
}

// Repaired returns the number of records changed by the pass.
func (r *Report) Repaired() int {
	return r.DefaultsCreated + r.KitchenTypesRepaired + r.RestaurantsRepaired
}

// Pipeline runs the ordered repair stages against a Store.
type Pipeline struct {
	store  Store
	opts   Options
	logger apt.Logger
}

// NewPipeline creates a pipeline over store.
func NewPipeline(store Store, opts Options, logger apt.Logger) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = GenerateUUID
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Pipeline{
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// Run executes discover, kitchen type repair, restaurant repair, index
// creation and verification in that order. A persistence error stops the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: p.opts.DryRun}

	p.logger.Info("📊 Checking current database state...")
	snap, err := Discover(ctx, p.store)
	if err != nil {
		return report, err
	}
	p.logger.Info("Collections found", "collections", strings.Join(snap.Collections, ", "))

	kitchenTypes, err := p.repairKitchenTypes(ctx, snap, report)
	if err != nil {
		return report, err
	}

	if err := p.repairRestaurants(ctx, snap, kitchenTypes, report); err != nil {
		return report, err
	}

	if err := p.ensureIndexes(ctx, report); err != nil {
		return report, err
	}

	if err := p.verify(ctx, report); err != nil {
		return report, err
	}

	return report, nil
}

// repairKitchenTypes returns the kitchen types available to restaurant repair
// once this stage is done.
func (p *Pipeline) repairKitchenTypes(ctx context.Context, snap Snapshot, report *Report) ([]KitchenType, error) {
	p.logger.Info("🍳 Checking kitchen types...")

	if !snap.HasKitchenTypes {
		defaults := DefaultKitchenTypes(p.opts.Now(), p.opts.NewID)
		p.logger.Info("⚠️  kitchen_types collection not found, creating default kitchen types", "count", len(defaults))
		if p.opts.DryRun {
			return defaults, nil
		}
		if err := p.store.InsertKitchenTypes(ctx, defaults); err != nil {
			p.logger.Error("cannot create default kitchen types", "error", err)
			return nil, fmt.Errorf("cannot create default kitchen types: %w", err)
		}
		report.DefaultsCreated = len(defaults)
		p.logger.Info("✅ Default kitchen types created", "count", len(defaults))
		return defaults, nil
	}

	valid, invalid := PartitionKitchenTypes(snap.KitchenTypes)
	report.KitchenTypesFound = len(snap.KitchenTypes)
	report.KitchenTypesInvalid = len(invalid)
	p.logger.Info("Kitchen types found", "total", len(snap.KitchenTypes), "valid", len(valid), "invalid", len(invalid))

	if len(invalid) == 0 {
		return valid, nil
	}

	p.logger.Info("🔧 Repairing invalid kitchen types...")
	available := valid
	for _, fix := range PlanKitchenTypeFixes(invalid, p.opts.Now(), p.opts.NewID) {
		if p.opts.DryRun {
			p.logger.Infof("  would repair kitchen type %s (%s -> %s)", fix.Replacement.Name, describeID(fix.OriginalID), describeID(fix.Replacement.ID))
			available = append(available, fix.Replacement)
			continue
		}
		if err := p.store.ReplaceKitchenTypeID(ctx, fix.OriginalID, fix.Replacement); err != nil {
			p.logger.Error("cannot repair kitchen type", "name", fix.Replacement.Name, "id", describeID(fix.OriginalID), "error", err)
			return nil, fmt.Errorf("cannot repair kitchen type %s: %w", describeID(fix.OriginalID), err)
		}
		report.KitchenTypesRepaired++
		available = append(available, fix.Replacement)
		p.logger.Infof("✅ Repaired kitchen type: %s (new id: %s)", fix.Replacement.Name, describeID(fix.Replacement.ID))
	}

	return available, nil
}

func (p *Pipeline) repairRestaurants(ctx context.Context, snap Snapshot, kitchenTypes []KitchenType, report *Report) error {
	p.logger.Info("🏪 Checking restaurants...")

	if !snap.HasRestaurants {
		p.logger.Info("restaurants collection not found, nothing to repair")
		return nil
	}

	kt := ChooseKitchenType(kitchenTypes, p.opts.DefaultKitchenType)
	if p.opts.DefaultKitchenType != "" && (kt == nil || kt.Name != p.opts.DefaultKitchenType) {
		p.logger.Info("⚠️  configured default kitchen type not found, using first available", "name", p.opts.DefaultKitchenType)
	}

	fixes := PlanRestaurantFixes(snap.Restaurants, kt, p.opts.Now(), p.opts.NewID)
	report.RestaurantsFound = len(snap.Restaurants)
	report.RestaurantsInvalid = len(fixes)
	p.logger.Info("Restaurants found", "total", len(snap.Restaurants), "valid", len(snap.Restaurants)-len(fixes), "invalid", len(fixes))

	if len(fixes) == 0 {
		return nil
	}

	p.logger.Info("🔧 Repairing invalid restaurants...")
	for _, fix := range fixes {
		r := fix.Restaurant
		p.logger.Infof("Repairing restaurant: %s - issues: %s", r.DisplayName(), strings.Join(fix.Issues, ", "))
		for _, change := range fix.Changes {
			p.logger.Infof("  ✅ %s", change)
		}
		if fix.Unresolved {
			report.UnresolvedReferences++
			p.logger.Info("  ⚠️  no valid kitchen type available, reference left unrepaired", "restaurant", r.DisplayName())
		}

		// a fix with no changes only carries an unresolved reference
		if p.opts.DryRun || len(fix.Changes) == 0 {
			continue
		}

		var err error
		if fix.IDChanged() {
			err = p.store.ReplaceRestaurantID(ctx, fix.OriginalID, r)
		} else {
			err = p.store.SaveRestaurant(ctx, r)
		}
		if err != nil {
			p.logger.Error("cannot save restaurant", "restaurant", r.DisplayName(), "id", describeID(fix.OriginalID), "error", err)
			return fmt.Errorf("cannot save restaurant %s: %w", describeID(fix.OriginalID), err)
		}
		report.RestaurantsRepaired++
	}

	return nil
}

func (p *Pipeline) ensureIndexes(ctx context.Context, report *Report) error {
	p.logger.Info("📊 Creating indexes...")
	if p.opts.DryRun {
		p.logger.Info("dry run, skipping index creation")
		return nil
	}

	if err := p.store.EnsureIndexes(ctx); err != nil {
		p.logger.Error("cannot create indexes", "error", err)
		return fmt.Errorf("cannot create indexes: %w", err)
	}
	report.IndexesEnsured = true
	p.logger.Info("✅ Unique index ensured for kitchen_types.name")
	p.logger.Info("✅ Indexes ensured for restaurants")
	return nil
}

func (p *Pipeline) verify(ctx context.Context, report *Report) error {
	p.logger.Info("🔍 Final verification...")

	counts, err := p.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("cannot count records: %w", err)
	}
	report.Verification = Verify(counts)

	p.logger.Info("Final kitchen types", "count", counts.KitchenTypes)
	p.logger.Info("Final restaurants", "count", counts.Restaurants)
	p.logger.Info("Kitchen types with invalid UUID", "count", counts.InvalidKitchenTypeIDs)
	p.logger.Info("Restaurants with invalid UUID", "count", counts.InvalidRestaurantIDs)

	if report.Verification.Compliant {
		p.logger.Info("✅ All UUIDs are valid!")
	} else {
		p.logger.Info("⚠️  Invalid UUIDs remain. Run the repair again.")
	}
	return nil
}
