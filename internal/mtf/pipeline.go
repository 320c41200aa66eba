package mtf

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/stockbot/internal/artifacts"
)

// ErrNoRecords means the listing produced no exportable records.
var ErrNoRecords = stdErrors.New("no mtf records found")

// Fetcher is the listing source used by the Pipeline.
type Fetcher interface {
	FetchAll(ctx context.Context) FetchResult
}

// Report summarizes one pipeline run.
type Report struct {
	Artifacts []artifacts.Artifact
	Records   int
	Pages     int
	Partial   bool
}

// Pipeline fetches the listing and exports each leverage bucket into its own CSV artifact.
type Pipeline struct {
	fetcher   Fetcher
	workspace *artifacts.Workspace
	buckets   []Bucket
	log       *slog.Logger
}

// NewPipeline creates a Pipeline over DefaultBuckets.
func NewPipeline(fetcher Fetcher, workspace *artifacts.Workspace, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		fetcher:   fetcher,
		workspace: workspace,
		buckets:   DefaultBuckets,
		log:       log,
	}
}

// Generate runs fetch, partition and export. Empty buckets produce no file.
// ErrNoRecords is returned when nothing could be exported; the Report is filled either way.
func (p *Pipeline) Generate(ctx context.Context) (Report, error) {
	res := p.fetcher.FetchAll(ctx)
	report := Report{
		Records: len(res.Records),
		Pages:   res.Pages,
		Partial: res.Partial(),
	}

	if len(res.Records) == 0 {
		return report, ErrNoRecords
	}

	groups := Partition(res.Records, p.buckets)
	for i, bucket := range p.buckets {
		art, err := p.exportBucket(bucket, groups[i])
		if stdErrors.Is(err, ErrNothingToExport) {
			p.log.Info("leverage bucket empty", slog.String("bucket", bucket.Name))
			continue
		}
		if err != nil {
			_ = artifacts.RemoveAll(report.Artifacts)
			return Report{Records: report.Records, Pages: report.Pages, Partial: report.Partial}, err
		}

		p.log.Info("leverage bucket exported", slog.String("bucket", bucket.Name), slog.Int("records", len(groups[i])))
		report.Artifacts = append(report.Artifacts, art)
	}

	if len(report.Artifacts) == 0 {
		return report, ErrNoRecords
	}

	return report, nil
}

func (p *Pipeline) exportBucket(bucket Bucket, records []Record) (artifacts.Artifact, error) {
	if len(records) == 0 {
		return artifacts.Artifact{}, ErrNothingToExport
	}

	name := "groww_mtf_" + bucket.Name
	file, err := p.workspace.Create(name, ".csv")
	if err != nil {
		return artifacts.Artifact{}, err
	}
	path := file.Name()
	_ = file.Close()

	art := artifacts.Artifact{
		Kind:     artifacts.KindDocument,
		Path:     path,
		FileName: name + ".csv",
		Caption:  fmt.Sprintf("Leverage %s: %d stocks", bucket.Label(), len(records)),
	}

	if err := Export(records, path); err != nil {
		_ = art.Remove()
		return artifacts.Artifact{}, fmt.Errorf("export %s: %w", bucket.Name, err)
	}

	return art, nil
}
