package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pfrederiksen/comment-map/internal/archive"
	"github.com/pfrederiksen/comment-map/internal/build"
	"github.com/pfrederiksen/comment-map/internal/district"
	"github.com/pfrederiksen/comment-map/internal/enrich"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/publish"
	"github.com/pfrederiksen/comment-map/internal/scraper/blm"
	"github.com/pfrederiksen/comment-map/internal/scraper/sopa"
	"github.com/pfrederiksen/comment-map/internal/standardize"
	"github.com/pfrederiksen/comment-map/internal/storage"
)

// Stage names used in the pipeline manifest
const (
	StageCollectBLM  = "collect-blm"
	StageCollectUSFS = "collect-usfs"
	StageEnrich      = "enrich"
	StageStandardize = "standardize"
	StagePublish     = "publish"
	StageMap         = "stage"
)

func (a *app) stages() map[string]build.StageFunc {
	return map[string]build.StageFunc{
		StageCollectBLM:  a.runCollectBLM,
		StageCollectUSFS: a.runCollectUSFS,
		StageEnrich:      a.runEnrich,
		StageStandardize: a.runStandardize,
		StagePublish: func(ctx context.Context, t build.Target) error {
			_, err := a.runPublish(ctx, t)
			return err
		},
		StageMap: a.runStageMap,
	}
}

func requireIO(t build.Target, inputs, outputs int) error {
	if len(t.Inputs) < inputs {
		return fmt.Errorf("%s needs %d input(s), got %d", t.Name, inputs, len(t.Inputs))
	}
	if len(t.Outputs) < outputs {
		return fmt.Errorf("%s needs %d output(s), got %d", t.Name, outputs, len(t.Outputs))
	}
	return nil
}

func (a *app) runCollectBLM(ctx context.Context, t build.Target) error {
	if err := requireIO(t, 0, 1); err != nil {
		return err
	}
	c := blm.New(a.http(),
		blm.WithBaseURL(a.cfg.BLM.BaseURL),
		blm.WithLocationURL(a.cfg.BLM.LocationURL),
		blm.WithTabs(a.cfg.BLM.Tabs),
	)
	rows, err := c.Collect(ctx, a.cfg.State)
	if err != nil {
		return fmt.Errorf("collecting BLM projects: %w", err)
	}
	if err := interim.Write(t.Outputs[0], interim.BLMColumns, rows); err != nil {
		return err
	}
	a.done(StageCollectBLM, t.Outputs[0], len(rows))
	return nil
}

func (a *app) runCollectUSFS(ctx context.Context, t build.Target) error {
	if err := requireIO(t, 0, 1); err != nil {
		return err
	}
	scanPDF := a.cfg.USFS.ScanPDF
	if v, ok := t.Args["pdf"]; ok {
		scanPDF, _ = strconv.ParseBool(v)
	}
	c := sopa.New(a.http(),
		sopa.WithBaseURL(a.cfg.USFS.SOPABaseURL),
		sopa.WithCycle(a.cfg.Cycle()),
		sopa.WithPDFScan(scanPDF),
		sopa.WithNoticeWindow(a.cfg.USFS.NoticeWindowDays),
	)
	rows, err := c.Collect(ctx, a.cfg.State)
	if err != nil {
		return fmt.Errorf("collecting SOPA reports: %w", err)
	}
	if err := interim.Write(t.Outputs[0], interim.USFSColumns, rows); err != nil {
		return err
	}
	a.done(StageCollectUSFS, t.Outputs[0], len(rows))
	return nil
}

// districtSource resolves where ranger district polygons come from
func (a *app) districtSource(file string) district.Source {
	if file == "" {
		file = a.cfg.USFS.DistrictsFile
	}
	return district.Source{
		File:    file,
		Client:  district.NewClient(a.http(), a.cfg.USFS.DistrictsURL),
		Cache:   district.NewCache(a.cfg.Path("cache", "ranger_districts.json"), a.cfg.USFS.DistrictCacheTTL),
		Aliases: a.cfg.USFS.Aliases,
	}
}

func (a *app) runEnrich(ctx context.Context, t build.Target) error {
	if err := requireIO(t, 1, 1); err != nil {
		return err
	}
	table, err := interim.Read(t.Inputs[0])
	if err != nil {
		return err
	}
	ix, err := district.Load(ctx, a.districtSource(t.Args["districts"]))
	if err != nil {
		return fmt.Errorf("loading ranger districts: %w", err)
	}

	out, stats := enrich.Enrich(table, ix)
	if err := interim.Write(t.Outputs[0], out.Header, out.Rows); err != nil {
		return err
	}
	logger.Info("Enriched USFS rows", logger.Fields{
		"rows":      stats.Rows,
		"direct":    stats.Direct,
		"matched":   stats.Matched,
		"unmatched": stats.Unmatched,
	})
	a.done(StageEnrich, t.Outputs[0], len(out.Rows))
	return nil
}

func (a *app) runStandardize(ctx context.Context, t build.Target) error {
	if err := requireIO(t, 1, 1); err != nil {
		return err
	}
	tables := make([]*interim.Table, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		table, err := interim.Read(in)
		if err != nil {
			return err
		}
		tables = append(tables, table)
	}

	res := standardize.Standardize(tables, standardize.Options{
		Agency: opportunity.ParseAgency(t.Args["agency"]),
		AsOf:   a.cfg.Now(),
	})
	if err := publish.WriteCSV(t.Outputs[0], res.Opportunities); err != nil {
		return err
	}
	if path := t.Args["unlocated"]; path != "" {
		if err := publish.WriteCSV(path, res.Unlocated); err != nil {
			return err
		}
	}
	if len(res.Unlocated) > 0 || res.Unmappable > 0 {
		logger.Info("Rows left out of the standardized table", logger.Fields{
			"unlocated":  len(res.Unlocated),
			"unmappable": res.Unmappable,
		})
	}
	a.done(StageStandardize, t.Outputs[0], len(res.Opportunities))
	return nil
}

func (a *app) runPublish(ctx context.Context, t build.Target) (*publish.Report, error) {
	if err := requireIO(t, 1, 2); err != nil {
		return nil, err
	}
	opps, err := publish.ReadCSV(t.Inputs[0])
	if err != nil {
		return nil, err
	}

	store, err := storage.New(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	opts := publish.Options{
		CSVPath:      t.Outputs[0],
		GeoJSONPath:  t.Outputs[1],
		MapAssetPath: t.Args["map"],
		CalendarPath: t.Args["calendar"],
		State:        a.cfg.State,
		Storage:      store,
		Now:          time.Now().UTC(),
	}
	if a.cfg.ArchivePath != "" {
		arc, err := archive.Open(ctx, a.cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		defer arc.Close()
		opts.Archive = arc
	}

	report, err := publish.Publish(ctx, opps, opts)
	if err != nil {
		return nil, err
	}
	a.done(StagePublish, t.Outputs[1], report.Published)
	return report, nil
}

func (a *app) runStageMap(ctx context.Context, t build.Target) error {
	if err := requireIO(t, 1, 1); err != nil {
		return err
	}
	if err := publish.StageMapAsset(t.Inputs[0], t.Outputs[0]); err != nil {
		return err
	}
	a.done(StageMap, t.Outputs[0], -1)
	return nil
}

func (a *app) done(stage, path string, records int) {
	metrics.MarkRun(stage, time.Now())
	fields := logger.Fields{"stage": stage, "path": path}
	if records >= 0 {
		fields["records"] = records
	}
	logger.Info("Stage complete", fields)
}
