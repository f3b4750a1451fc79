package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/idrepair/internal/mongo"
	"github.com/appetiteclub/idrepair/internal/repair"
	"github.com/spf13/cobra"
)

const (
	AppNamespace = "IDREPAIR"
	AppName      = "idrepair"
	AppVersion   = "0.1.0"
)

// Settings are the resolved runtime options shared by every command.
type Settings struct {
	MongoURL           string
	Database           string
	LogLevel           string
	NATSURL            string
	DefaultKitchenType string
}

// StoreOpener connects a repair.Store and returns the function that releases it.
type StoreOpener func(ctx context.Context, s Settings, logger apt.Logger) (repair.Store, func(context.Context) error, error)

// OpenMongoStore is the StoreOpener used outside tests.
func OpenMongoStore(ctx context.Context, s Settings, logger apt.Logger) (repair.Store, func(context.Context) error, error) {
	store := mongo.NewStore(mongo.Config{URL: s.MongoURL, Database: s.Database}, logger)
	if err := store.Start(ctx); err != nil {
		return nil, nil, err
	}
	return store, store.Stop, nil
}

type deps struct {
	loadConfig func() (*apt.Config, error)
	openStore  StoreOpener
	newLogger  func(level string) apt.Logger
	publisher  func(url string) (Publisher, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: func() (*apt.Config, error) { return apt.LoadConfig(AppNamespace, nil) },
		openStore:  OpenMongoStore,
		newLogger:  func(level string) apt.Logger { return apt.NewLogger(level) },
		publisher:  newNATSPublisher,
	}
}

// NewRootCmd builds the idrepair command tree. Running it without a
// subcommand performs a repair pass.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: "Repair malformed identifiers in the restaurant database",
		Long: `idrepair validates and repairs the identifiers stored in the kitchen_types and
restaurants collections of the restaurant service database.

Every identifier must be a canonical UUID string (8-4-4-4-12 hexadecimal digits).
Malformed identifiers are replaced with freshly generated UUIDs, missing kitchen
types are provisioned, lookup indexes are created and the result is verified.

Stop the restaurant service before running and restart it afterwards.

Environment Variables:
  IDREPAIR_MONGO_URL                  MongoDB connection URL (default: mongodb://localhost:27017)
  IDREPAIR_MONGO_DATABASE             Database name (default: tech_challenge_restaurants)
  IDREPAIR_LOG_LEVEL                  Log level: debug, info, warn, error (default: info)
  IDREPAIR_NATS_URL                   NATS URL for the completion event (optional)
  IDREPAIR_REPAIR_DEFAULT_KITCHEN_TYPE Kitchen type used for broken references (optional)`,
		Version:       AppVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, d, false)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("mongo-url", "", "MongoDB connection URL")
	flags.String("database", "", "database holding kitchen_types and restaurants")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("nats-url", "", "NATS URL used to announce a completed repair")
	flags.String("default-kitchen-type", "", "kitchen type name assigned to restaurants with a broken reference")

	groupRepair := "repair"
	groupMaintenance := "maintenance"
	rootCmd.AddGroup(&cobra.Group{ID: groupRepair, Title: "Repair Commands"})
	rootCmd.AddGroup(&cobra.Group{ID: groupMaintenance, Title: "Maintenance Commands"})

	repairCmd := newRepairCmd(d)
	checkCmd := newCheckCmd(d)
	resetCmd := newResetCmd(d)
	versionCmd := newVersionCmd()

	repairCmd.GroupID = groupRepair
	checkCmd.GroupID = groupRepair
	resetCmd.GroupID = groupMaintenance
	versionCmd.GroupID = groupMaintenance

	rootCmd.AddCommand(repairCmd, checkCmd, resetCmd, versionCmd)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", AppName, AppVersion)
		},
	}
}

// loadSettings merges the IDREPAIR_* configuration with explicit flags.
func loadSettings(cmd *cobra.Command, d deps) (Settings, error) {
	config, err := d.loadConfig()
	if err != nil {
		return Settings{}, fmt.Errorf("cannot load config: %w", err)
	}

	s := Settings{
		MongoURL:           config.GetStringOrDef("mongo.url", mongo.DefaultURL),
		Database:           config.GetStringOrDef("mongo.database", mongo.DefaultDatabase),
		LogLevel:           config.GetStringOrDef("log.level", "info"),
		NATSURL:            config.GetStringOrDef("nats.url", ""),
		DefaultKitchenType: config.GetStringOrDef("repair.default_kitchen_type", ""),
	}
	applyFlags(cmd, &s)
	return s, nil
}

func applyFlags(cmd *cobra.Command, s *Settings) {
	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("mongo-url", &s.MongoURL)
	override("database", &s.Database)
	override("log-level", &s.LogLevel)
	override("nats-url", &s.NATSURL)
	override("default-kitchen-type", &s.DefaultKitchenType)
}
