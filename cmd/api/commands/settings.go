package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"kerno/internal/kerno"
)

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the merged INI settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := readSettings()
			if err != nil {
				return err
			}
			return writeSettings(cmd.OutOrStdout(), settings)
		},
	}
}

func writeSettings(w io.Writer, s kerno.Settings) error {
	for i, section := range s.Sections() {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "[%s]\n", section); err != nil {
			return err
		}
		for _, key := range slices.Sorted(maps.Keys(s[section])) {
			// Continuation lines are indented, as ReadINIFiles expects.
			val := strings.ReplaceAll(s[section][key], "\n", "\n    ")
			if _, err := fmt.Fprintf(w, "%s = %s\n", key, val); err != nil {
				return err
			}
		}
	}
	return nil
}
