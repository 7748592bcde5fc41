package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/promptlibrary/internal/app"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptctl",
		Short: "Manage the prompt library from the command line",
		Long: `promptctl works directly on the configured prompt collection store
(STORE_BACKEND, STORE_PATH, DATABASE_URL, REDIS_ADDR). It is meant for bulk
import and export, inspection and template checks without running the API.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newListCmd(),
		newShowCmd(),
		newVarsCmd(),
		newCompileCmd(),
		newImportCmd(),
		newExportCmd(),
		newStatsCmd(),
	)
	return root
}

// withLibrary opens the configured store for the duration of fn.
func withLibrary(cmd *cobra.Command, fn func(lib *library.Library) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.Log)

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Library)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
