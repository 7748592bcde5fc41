package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

func newListCmd() *cobra.Command {
	var query, theme, modality, sortOrder string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts, optionally filtered by keyword, theme or modality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := library.Query{Text: query, Theme: theme}
			if modality != "" {
				m, err := models.ParseModality(modality)
				if err != nil {
					return err
				}
				q.Modality = m
			}
			if sortOrder != "" {
				s, err := library.ParseSortOrder(sortOrder)
				if err != nil {
					return err
				}
				q.Sort = s
			}

			return withLibrary(cmd, func(lib *library.Library) error {
				prompts, err := lib.Search(cmd.Context(), q)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range prompts {
					fmt.Fprintf(out, "%s\tv%d\t%s\t%s\n", p.ID, p.CurrentVersion, p.Modality, p.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive keyword")
	cmd.Flags().StringVar(&theme, "theme", "", "exact theme")
	cmd.Flags().StringVar(&modality, "modality", "", "Text, Image, Video, Audio or Code")
	cmd.Flags().StringVar(&sortOrder, "sort", "", "createdAt-desc, createdAt-asc, title-asc or title-desc")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a prompt with its full version history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(lib *library.Library) error {
				p, err := lib.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newVarsCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "vars [id]",
		Short: "List the [placeholder] variables of a prompt's active version or of --text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			emit := func(t string) error {
				for _, v := range prompt.ExtractVariables(t) {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			}
			if len(args) == 0 {
				if text == "" {
					return fmt.Errorf("an id or --text is required")
				}
				return emit(text)
			}
			return withLibrary(cmd, func(lib *library.Library) error {
				p, err := lib.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(prompt.ActiveText(&p))
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "template text to inspect instead of a stored prompt")
	return cmd
}

func newCompileCmd() *cobra.Command {
	var values []string
	cmd := &cobra.Command{
		Use:   "compile <id>",
		Short: "Fill the placeholders of a prompt's active version and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := parseValues(values)
			if err != nil {
				return err
			}
			return withLibrary(cmd, func(lib *library.Library) error {
				run, err := lib.PrepareRun(cmd.Context(), args[0], library.RunRequest{Values: vals})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), run.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&values, "set", nil, "placeholder value as name=value (repeatable)")
	return cmd
}

func parseValues(pairs []string) (map[string]string, error) {
	vals := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", pair)
		}
		vals[name] = value
	}
	return vals, nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append prompts from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			return withLibrary(cmd, func(lib *library.Library) error {
				report, err := lib.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d (duplicates %d, malformed %d, missing id %d, invalid modality %d)\n",
					report.Imported, report.Skipped(), report.Duplicates, report.Malformed, report.MissingID, report.InvalidModality)
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole collection as JSON",
		Long:  "Write the whole collection as JSON. Without --output the file is named ai-prompts-export-YYYY-MM-DD.json; use --output - for stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(lib *library.Library) error {
				data, filename, err := lib.Export(cmd.Context())
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if output == "" {
					output = filename
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file, - for stdout")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print library statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(lib *library.Library) error {
				s, err := lib.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}
