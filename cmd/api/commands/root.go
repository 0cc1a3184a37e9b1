package commands

import (
	"os"

	"github.com/spf13/cobra"

	"kerno/internal/config"
	"kerno/internal/kerno"
	"kerno/internal/log"
)

var (
	cfg          *config.AppConfig
	settingFiles []string
	logLevel     string
)

// Execute runs the command line.
func Execute() error {
	root := &cobra.Command{
		Use:          "kerno",
		Short:        "Document API built on a kerno",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration from environment variables (.env auto-loaded if present)
			cfg = config.Load()
			if len(settingFiles) == 0 {
				settingFiles = cfg.Settings
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			log.Setup(logLevel, os.Stdout)
			return nil
		},
	}

	root.PersistentFlags().StringSliceVar(&settingFiles, "settings", nil, "INI settings files, later ones win (default $KERNO_SETTINGS)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	root.AddCommand(serveCmd(), migrateCmd(), settingsCmd())
	return root.Execute()
}

// readSettings reads the INI files given by --settings or KERNO_SETTINGS.
func readSettings() (kerno.Settings, error) {
	return kerno.ReadINIFiles(settingFiles...)
}
