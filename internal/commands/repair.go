package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/idrepair/internal/repair"
	"github.com/appetiteclub/idrepair/pkg"
	"github.com/appetiteclub/idrepair/pkg/event"
	"github.com/spf13/cobra"
)

// Publisher announces events to other services.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
	Close() error
}

func newNATSPublisher(url string) (Publisher, error) {
	publisher, err := pkg.NewNATSPublisher(url)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

func newRepairCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Repair malformed identifiers (default command)",
		Long: `Runs a full repair pass: discover collections, repair kitchen types, repair
restaurants, ensure indexes and verify. Safe to run again; a second pass on a
repaired database changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, d, false)
		},
	}
}

func newCheckCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report malformed identifiers without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, d, true)
		},
	}
}

func runRepair(cmd *cobra.Command, d deps, dryRun bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := loadSettings(cmd, d)
	if err != nil {
		return err
	}
	logger := d.newLogger(settings.LogLevel)

	if dryRun {
		logger.Info("🔎 Checking MongoDB identifiers (dry run)...")
	} else {
		logger.Info("🧹 Starting MongoDB cleanup...")
	}

	store, closeStore, err := d.openStore(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(ctx); err != nil {
			logger.Error("cannot close store", "error", err)
		}
	}()

	opts := repair.Options{
		DryRun:             dryRun,
		DefaultKitchenType: settings.DefaultKitchenType,
	}
	report, err := repair.NewPipeline(store, opts, logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}
	printSummary(cmd.OutOrStdout(), report)

	if !dryRun {
		announce(ctx, d, settings, report, logger)
		fmt.Fprintln(cmd.OutOrStdout(), "💡 Restart the restaurant service to pick up the corrected identifiers.")
	}
	return nil
}

// announce publishes the completion event when NATS is configured. Delivery
// failures are logged only; the database is already repaired.
func announce(ctx context.Context, d deps, s Settings, report *repair.Report, logger apt.Logger) {
	if s.NATSURL == "" {
		return
	}

	publisher, err := d.publisher(s.NATSURL)
	if err != nil {
		logger.Error("cannot connect to NATS, completion event not sent", "error", err)
		return
	}
	defer publisher.Close()

	data, err := json.Marshal(newRepairedEvent(s, report, time.Now()))
	if err != nil {
		logger.Error("cannot marshal completion event", "error", err)
		return
	}

	if err := publisher.Publish(ctx, event.MaintenanceTopic, data); err != nil {
		logger.Error("cannot publish completion event", "error", err)
		return
	}
	logger.Info("Completion event published", "topic", event.MaintenanceTopic)
}

func newRepairedEvent(s Settings, report *repair.Report, now time.Time) event.IdentifiersRepairedEvent {
	return event.IdentifiersRepairedEvent{
		EventType:             event.EventIdentifiersRepaired,
		OccurredAt:            now,
		Database:              s.Database,
		DefaultsCreated:       report.DefaultsCreated,
		KitchenTypesRepaired:  report.KitchenTypesRepaired,
		RestaurantsRepaired:   report.RestaurantsRepaired,
		UnresolvedReferences:  report.UnresolvedReferences,
		InvalidKitchenTypeIDs: report.Verification.InvalidKitchenTypeIDs,
		InvalidRestaurantIDs:  report.Verification.InvalidRestaurantIDs,
		Compliant:             report.Verification.Compliant,
	}
}

func printSummary(w io.Writer, report *repair.Report) {
	if report == nil {
		return
	}

	title := "Repair summary"
	if report.DryRun {
		title = "Check summary (dry run, nothing written)"
	}

	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "  Default kitchen types created: %d\n", report.DefaultsCreated)
	fmt.Fprintf(w, "  Kitchen types:  %d found, %d invalid, %d repaired\n",
		report.KitchenTypesFound, report.KitchenTypesInvalid, report.KitchenTypesRepaired)
	fmt.Fprintf(w, "  Restaurants:    %d found, %d invalid, %d repaired\n",
		report.RestaurantsFound, report.RestaurantsInvalid, report.RestaurantsRepaired)
	if report.UnresolvedReferences > 0 {
		fmt.Fprintf(w, "  Unresolved kitchen type references: %d\n", report.UnresolvedReferences)
	}

	v := report.Verification
	fmt.Fprintf(w, "  Final counts:   %d kitchen types, %d restaurants\n", v.KitchenTypes, v.Restaurants)
	fmt.Fprintf(w, "  Invalid UUIDs:  %d kitchen types, %d restaurants\n", v.InvalidKitchenTypeIDs, v.InvalidRestaurantIDs)
	if v.Compliant {
		fmt.Fprintln(w, "✅ All UUIDs are valid!")
	} else {
		fmt.Fprintln(w, "⚠️  Invalid UUIDs remain. Run the repair again.")
	}
}
