// Package batch runs the aggregation pipeline over many molecules with
// bounded parallelism. One molecule's failure never cancels the rest.
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pharmyrus/pharmyrus/internal/pipeline"
)

const DefaultMaxConcurrent = 3

// PipelineRunner is the per-molecule pipeline boundary.
type PipelineRunner interface {
	Run(ctx context.Context, molecule, countryFilter string, limit int) (pipeline.Report, error)
}

type Runner struct {
	pipeline      PipelineRunner
	maxConcurrent int64
	now           func() time.Time
}

func NewRunner(p PipelineRunner, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Runner{pipeline: p, maxConcurrent: int64(maxConcurrent), now: time.Now}
}

// MoleculeSuccess pairs a molecule with its completed report.
type MoleculeSuccess struct {
	Molecule string          `json:"molecule"`
	Status   string          `json:"status"`
	Report   pipeline.Report `json:"report"`
}

type MoleculeFailure struct {
	Molecule string `json:"molecule"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

type Summary struct {
	TotalMolecules     int     `json:"total_molecules"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	DurationSeconds    float64 `json:"duration_seconds"`
	AveragePerMolecule float64 `json:"average_per_molecule"`
}

type BatchReport struct {
	BatchSummary Summary           `json:"batch_summary"`
	Results      []MoleculeSuccess `json:"results"`
	Errors       []MoleculeFailure `json:"errors"`
	Timestamp    string            `json:"timestamp"`
}

// RunBatch processes the molecules concurrently under the configured
// cap and separates successes from failures. Input order is preserved
// within each list.
func (r *Runner) RunBatch(ctx context.Context, molecules []string, countryFilter string, limit int) BatchReport {
	start := r.now()
	log.Printf("batch start molecules=%d max_concurrent=%d", len(molecules), r.maxConcurrent)

	type outcome struct {
		report pipeline.Report
		err    error
	}
	outcomes := make([]outcome, len(molecules))

	sem := semaphore.NewWeighted(r.maxConcurrent)
	var wg sync.WaitGroup
	for i, molecule := range molecules {
		wg.Add(1)
		go func(i int, molecule string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = outcome{err: err}
				return
			}
			defer sem.Release(1)
			report, err := r.pipeline.Run(ctx, molecule, countryFilter, limit)
			outcomes[i] = outcome{report: report, err: err}
		}(i, molecule)
	}
	wg.Wait()

	report := BatchReport{
		Results:   []MoleculeSuccess{},
		Errors:    []MoleculeFailure{},
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}
	for i, molecule := range molecules {
		if outcomes[i].err != nil {
			log.Printf("batch molecule_failed molecule=%s err=%v", molecule, outcomes[i].err)
			report.Errors = append(report.Errors, MoleculeFailure{
				Molecule: molecule,
				Status:   "error",
				Error:    outcomes[i].err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, MoleculeSuccess{
			Molecule: molecule,
			Status:   "success",
			Report:   outcomes[i].report,
		})
	}

	duration := r.now().Sub(start).Seconds()
	report.BatchSummary = Summary{
		TotalMolecules:  len(molecules),
		Successful:      len(report.Results),
		Failed:          len(report.Errors),
		DurationSeconds: duration,
	}
	if len(molecules) > 0 {
		report.BatchSummary.AveragePerMolecule = duration / float64(len(molecules))
	}
	log.Printf("batch done successful=%d failed=%d duration=%.2fs",
		report.BatchSummary.Successful, report.BatchSummary.Failed, duration)
	return report
}
