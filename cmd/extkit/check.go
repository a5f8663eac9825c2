package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/extension"
)

// checkResult is the outcome of checking one extension.
type checkResult struct {
	Extension string   `json:"extension"`
	Point     string   `json:"point"`
	OK        bool     `json:"ok"`
	Missing   []string `json:"missing,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type checkReport struct {
	Valid   bool          `json:"valid"`
	Error   string        `json:"error,omitempty"`
	Results []checkResult `json:"results"`
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the manifest and validate every extension's dependencies",
		Long: `Load the manifest into a fresh registry, preloading where allowed, then
validate the declared dependencies of every registered extension.

Exits non-zero when loading fails or any dependency is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}
}

func runCheck(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	app, err := opts.newCatalogApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Shutdown(ctx)

	report := checkReport{Valid: true, Results: []checkResult{}}
	if err := app.Load(ctx); err != nil {
		report.Valid = false
		report.Error = err.Error()
	} else {
		report.Results = checkDependencies(app.Store)
		for _, r := range report.Results {
			report.Valid = report.Valid && r.OK
		}
	}

	if err := writeCheckReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("manifest check failed")
	}
	return nil
}

func checkDependencies(store *extension.Store) []checkResult {
	records := store.Registry().All()
	results := make([]checkResult, 0, len(records))
	for _, rec := range records {
		r := checkResult{Extension: rec.Key(), Point: rec.PointKey(), OK: true}
		if err := store.ValidateDependencies(rec.Key()); err != nil {
			r.OK = false
			r.Missing = extension.MissingDependencyKeys(err)
			if appErr, ok := apperrors.AsAppError(err); ok {
				r.Error = appErr.Message
			} else {
				r.Error = err.Error()
			}
		}
		results = append(results, r)
	}
	return results
}

func writeCheckReport(w io.Writer, format string, report checkReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Error != "" {
		fmt.Fprintf(w, "❌ %s\n", report.Error)
		return nil
	}
	for _, r := range report.Results {
		if r.OK {
			fmt.Fprintf(w, "✅ %s (%s)\n", r.Extension, r.Point)
		} else {
			fmt.Fprintf(w, "❌ %s (%s): %s\n", r.Extension, r.Point, r.Error)
		}
	}
	fmt.Fprintf(w, "\n%d extension(s) checked\n", len(report.Results))
	return nil
}
