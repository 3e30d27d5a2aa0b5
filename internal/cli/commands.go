package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/comment-map/internal/archive"
	"github.com/pfrederiksen/comment-map/internal/build"
	"github.com/pfrederiksen/comment-map/internal/filter"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/publish"
	"github.com/pfrederiksen/comment-map/internal/storage"
)

func errInvalid(flag, value, want string) error {
	return fmt.Errorf("invalid --%s: %s (must be %s)", flag, value, want)
}

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	if format != FormatText && format != FormatJSON {
		return "", errInvalid("format", s, "'text' or 'json'")
	}
	return format, nil
}

// withOverrides replaces the target's inputs and first output when given
func withOverrides(t build.Target, inputs []string, out string) build.Target {
	if len(inputs) > 0 {
		t.Inputs = inputs
	}
	if out != "" {
		t.Outputs = append([]string{out}, t.Outputs[min(1, len(t.Outputs)):]...)
	}
	return t
}

func (a *app) collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Scrape an agency's public comment listings into an interim CSV",
	}

	var blmOut string
	blmCmd := &cobra.Command{
		Use:   "blm",
		Short: "Collect BLM ePlanning projects with public comment language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target("blm")
			if err != nil {
				return err
			}
			return a.runCollectBLM(cmd.Context(), withOverrides(t, nil, blmOut))
		},
	}
	blmCmd.Flags().StringVar(&blmOut, "out", "", "Output CSV (default <data-dir>/interim/blm_public_comment.csv)")

	var usfsOut string
	var noPDF bool
	usfsCmd := &cobra.Command{
		Use:   "usfs",
		Short: "Collect USFS SOPA projects with public comment language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target("usfs")
			if err != nil {
				return err
			}
			if noPDF {
				t.Args["pdf"] = strconv.FormatBool(false)
			}
			return a.runCollectUSFS(cmd.Context(), withOverrides(t, nil, usfsOut))
		},
	}
	usfsCmd.Flags().StringVar(&usfsOut, "out", "", "Output CSV (default <data-dir>/interim/usfs_public_comment.csv)")
	usfsCmd.Flags().BoolVar(&noPDF, "no-pdf", false, "Skip the SOPA PDF reports")

	cmd.AddCommand(blmCmd, usfsCmd)
	return cmd
}

func (a *app) enrichCmd() *cobra.Command {
	var out, districts string
	cmd := &cobra.Command{
		Use:   "enrich [usfs-interim.csv]",
		Short: "Place USFS rows at the centroid of their ranger district",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target("enrich")
			if err != nil {
				return err
			}
			if districts != "" {
				t.Args["districts"] = districts
			}
			return a.runEnrich(cmd.Context(), withOverrides(t, args, out))
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output CSV (default <data-dir>/processed/usfs_public_comment_with_geom.csv)")
	cmd.Flags().StringVar(&districts, "districts", "", "Ranger district GeoJSON file instead of the EDW service")
	return cmd
}

func (a *app) standardizeCmd() *cobra.Command {
	var out, unlocated, agency string
	cmd := &cobra.Command{
		Use:   "standardize [interim.csv...]",
		Short: "Map interim tables into the canonical opportunity table",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target("standardize")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("unlocated") {
				t.Args["unlocated"] = unlocated
			}
			if agency != "" {
				if opportunity.ParseAgency(agency) == "" {
					return errInvalid("agency", agency, "BLM or USFS")
				}
				t.Args["agency"] = agency
			}
			return a.runStandardize(cmd.Context(), withOverrides(t, args, out))
		},
	}
	cmd.Flags().StringVar(&out, "csv", "", "Output CSV (default <data-dir>/standardized/opportunities.csv)")
	cmd.Flags().StringVar(&unlocated, "unlocated", "", "Write rows without a location here (empty disables)")
	cmd.Flags().StringVar(&agency, "agency", "", "Force the field mapping for every input: BLM or USFS")
	return cmd
}

func (a *app) publishCmd() *cobra.Command {
	var csvOut, geojsonOut, mapOut, calendarOut, report, sortFlag string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "publish [standardized.csv]",
		Short: "Dedupe and write the final CSV and GeoJSON",
		Long: `Dedupe the standardized table and write the final CSV and GeoJSON from the
same ordered records. The published set is compared with the previous
snapshot; with --report the exit code is 2 when new opportunities appeared.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var format OutputFormat
			if report != "" {
				var err error
				if format, err = parseFormat(report); err != nil {
					return err
				}
			}
			sortOrder, err := parseSortOrder(sortFlag)
			if err != nil {
				return err
			}

			t, err := a.target("publish")
			if err != nil {
				return err
			}
			t = withOverrides(t, args, csvOut)
			if geojsonOut != "" {
				t.Outputs[1] = geojsonOut
			}
			if mapOut != "" {
				t.Args["map"] = mapOut
			}
			if cmd.Flags().Changed("calendar") {
				t.Args["calendar"] = calendarOut
			}

			res, err := a.runPublish(cmd.Context(), t)
			if err != nil {
				return err
			}
			if report == "" {
				return nil
			}
			if err := WriteOutput(a.stdout, fromReport(a.cfg.State, res, sortOrder), format, verbose); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if res.HasNew() {
				return &exitCodeError{code: ExitNewOpportunities}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvOut, "csv", "", "Output CSV (default <data-dir>/final/opportunities.csv)")
	cmd.Flags().StringVar(&geojsonOut, "geojson", "", "Output GeoJSON (default <data-dir>/final/opportunities.geojson)")
	cmd.Flags().StringVar(&mapOut, "map", "", "Also stage the GeoJSON to this web map path")
	cmd.Flags().StringVar(&calendarOut, "calendar", "", "iCalendar feed of comment deadlines (default <data-dir>/final/comment_deadlines.ics, empty disables)")
	cmd.Flags().StringVar(&report, "report", "", "Print a change report: text or json")
	cmd.Flags().StringVar(&sortFlag, "sort", "end", "Order of new opportunities: end, agency or title")
	cmd.Flags().BoolVar(&verbose, "details", false, "Include IDs, URLs and field changes in the report")
	return cmd
}

func (a *app) stageCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "stage [opportunities.geojson]",
		Short: "Copy the published GeoJSON to the web map",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.target("stage")
			if err != nil {
				return err
			}
			return a.runStageMap(cmd.Context(), withOverrides(t, args, out))
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Web map asset (default <web-dir>/data/opportunities.geojson)")
	return cmd
}

func (a *app) buildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build [target...]",
		Short: "Run stale pipeline stages in order",
		Long: `Run the named targets, and every target they depend on, in manifest order.
A target runs when one of its outputs is missing or older than one of its
inputs. With no targets the whole pipeline is considered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manifest()
			if err != nil {
				return err
			}
			runner := &build.Runner{Manifest: m, Stages: a.stages(), Force: force}
			res, err := runner.Run(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Ran %d target(s), %d up to date\n", len(res.Ran), len(res.Skipped))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rerun targets even when up to date")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	var formatFlag, sortFlag, closingBy string
	var agencies, statuses, offices []string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "diff [opportunities.csv]",
		Short: "Compare a published table with the stored snapshot",
		Long: `Compare a canonical opportunity table with the snapshot saved by the last
publish, without updating it. Exits 2 when new opportunities appear.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(formatFlag)
			if err != nil {
				return err
			}
			sortOrder, err := parseSortOrder(sortFlag)
			if err != nil {
				return err
			}
			f, err := filter.Parse(agencies, statuses, offices, closingBy)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				t, err := a.target("publish")
				if err != nil {
					return err
				}
				path = t.Outputs[0]
			}

			opps, err := publish.ReadCSV(path)
			if err != nil {
				return err
			}
			store, err := storage.New(a.cfg.DataDir)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			previous, err := store.LoadSnapshot(a.cfg.State)
			if err != nil {
				return fmt.Errorf("loading snapshot: %w", err)
			}

			diff := opportunity.Diff(previous, opps, a.cfg.Now())
			if !f.IsEmpty() {
				logger.Debug("Filtering report", logger.Fields{"filter": f.String()})
				diff.New = f.Apply(diff.New)
				diff.Removed = f.Apply(diff.Removed)
			}
			result := newOutputResult(a.cfg.State, diff, sortOrder)
			if verbose {
				if err := a.addFirstSeen(cmd.Context(), result); err != nil {
					return err
				}
			}
			if err := WriteOutput(a.stdout, result, format, verbose); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if diff.HasNew() {
				return &exitCodeError{code: ExitNewOpportunities}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&sortFlag, "sort", "end", "Order of new opportunities: end, agency or title")
	cmd.Flags().BoolVar(&verbose, "details", false, "Include IDs, URLs and field changes")
	cmd.Flags().StringSliceVar(&agencies, "agency", nil, "Only report these agencies (BLM, USFS)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only report these statuses (active, upcoming, closed, unknown)")
	cmd.Flags().StringSliceVar(&offices, "office", nil, "Only report offices or districts containing this text")
	cmd.Flags().StringVar(&closingBy, "closing-by", "", "Only report comment periods ending on or before YYYY-MM-DD")
	return cmd
}

// addFirstSeen fills in when each new opportunity was first published,
// from the archive when one exists
func (a *app) addFirstSeen(ctx context.Context, result *OutputResult) error {
	if a.cfg.ArchivePath == "" || result.NewCount == 0 {
		return nil
	}
	if _, err := os.Stat(a.cfg.ArchivePath); err != nil {
		return nil
	}

	arc, err := archive.Open(ctx, a.cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arc.Close()

	for _, o := range result.NewOpportunities {
		e, err := arc.Get(ctx, o.Agency, o.ProjectID)
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if e == nil {
			continue
		}
		if result.FirstSeen == nil {
			result.FirstSeen = make(map[string]time.Time)
		}
		result.FirstSeen[o.Key()] = e.FirstSeen
	}
	return nil
}
