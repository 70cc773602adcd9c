package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mode89/go-trainer/internal/ga"
	"github.com/mode89/go-trainer/internal/model"
)

// Summary condenses the generation history of one run.
type Summary struct {
	Generations    int
	BestFitness    float64
	BestGeneration int
	MeanBest       float64
	Episodes       int
	Failures       int
	Duration       time.Duration
}

// FailureRate is the share of episodes that failed, or 0 without episodes.
func (s Summary) FailureRate() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Episodes)
}

func Summarize(diagnostics []model.GenerationDiagnostics) Summary {
	if len(diagnostics) == 0 {
		return Summary{}
	}
	best := BestSeries(diagnostics)
	i := floats.MinIdx(best)
	summary := Summary{
		Generations:    len(diagnostics),
		BestFitness:    best[i],
		BestGeneration: diagnostics[i].Generation,
		MeanBest:       stat.Mean(best, nil),
	}
	for _, d := range diagnostics {
		summary.Episodes += d.Episodes
		summary.Failures += d.Failures
		summary.Duration += time.Duration(d.DurationMS) * time.Millisecond
	}
	return summary
}

// BestSeries is the best fitness of every generation in order.
func BestSeries(diagnostics []model.GenerationDiagnostics) []float64 {
	series := make([]float64, len(diagnostics))
	for i, d := range diagnostics {
		series[i] = d.BestFitness
	}
	return series
}

func HistoryTable(diagnostics []model.GenerationDiagnostics) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 24
	table.Wrap = false
	table.AddRow("GEN", "BEST", "MEAN", "WORST", "EPISODES", "FAILURES", "DURATION")
	for _, d := range diagnostics {
		table.AddRow(
			d.Generation,
			formatFitness(d.BestFitness),
			formatFitness(d.MeanFitness),
			formatFitness(d.WorstFitness),
			humanize.Comma(int64(d.Episodes)),
			humanize.Comma(int64(d.Failures)),
			(time.Duration(d.DurationMS) * time.Millisecond).String(),
		)
	}
	return table
}

func SummaryTable(summary Summary) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("generations:", summary.Generations)
	table.AddRow("best fitness:", fmt.Sprintf("%s (generation %d)", formatFitness(summary.BestFitness), summary.BestGeneration))
	table.AddRow("mean best:", formatFitness(summary.MeanBest))
	table.AddRow("episodes:", humanize.Comma(int64(summary.Episodes)))
	table.AddRow("failures:", fmt.Sprintf("%s (%.2f%%)", humanize.Comma(int64(summary.Failures)), 100*summary.FailureRate()))
	table.AddRow("duration:", summary.Duration.String())
	return table
}

func WriteHistoryCSV(w io.Writer, diagnostics []model.GenerationDiagnostics) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"generation", "best_fitness", "mean_fitness", "worst_fitness", "episodes", "failures", "duration_ms",
	}); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.Itoa(d.Generation),
			strconv.FormatFloat(d.BestFitness, 'f', -1, 64),
			strconv.FormatFloat(d.MeanFitness, 'f', -1, 64),
			strconv.FormatFloat(d.WorstFitness, 'f', -1, 64),
			strconv.Itoa(d.Episodes),
			strconv.Itoa(d.Failures),
			strconv.FormatInt(d.DurationMS, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFitness(v float64) string {
	if v >= ga.WorstFitness {
		return "unscored"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
