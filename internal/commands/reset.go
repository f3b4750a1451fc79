package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/idrepair/internal/repair"
	"github.com/spf13/cobra"
)

// ErrResetNotConfirmed is returned when reset runs without --yes.
var ErrResetNotConfirmed = errors.New("reset deletes every kitchen type and restaurant, rerun with --yes to confirm")

func newResetCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe kitchen types and restaurants and reseed kitchen types (USE WITH CAUTION)",
		Long: `Deletes every document in kitchen_types and restaurants, then inserts the
standard kitchen type catalogue with fresh identifiers. Restaurants must be
recreated through the restaurant service API afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, d)
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the destructive reset")
	return cmd
}

func runReset(cmd *cobra.Command, d deps) error {
	confirmed, _ := cmd.Flags().GetBool("yes")
	if !confirmed {
		return ErrResetNotConfirmed
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := loadSettings(cmd, d)
	if err != nil {
		return err
	}
	logger := d.newLogger(settings.LogLevel)

	logger.Infof("⚠️  DANGER: This will delete ALL kitchen types and restaurants in %s!", settings.Database)

	store, closeStore, err := d.openStore(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(ctx); err != nil {
			logger.Error("cannot close store", "error", err)
		}
	}()

	kts := repair.ResetKitchenTypes(time.Now(), repair.GenerateUUID)
	if err := store.Reset(ctx, kts); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Created %d kitchen types:\n", len(kts))
	for _, kt := range kts {
		fmt.Fprintf(out, "  • %s (ID: %s)\n", kt.Name, kt.ID)
	}
	fmt.Fprintln(out, "✅ Restaurants cleared. Recreate them through the restaurant service API.")
	return nil
}
