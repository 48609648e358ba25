package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

// StageProgress shows pipeline stages on a progress bar.
type StageProgress struct {
	bar     *progressbar.ProgressBar
	stages  []pipeline.Stage
	current int
}

// NewStageProgress creates a progress bar with one step per stage.
func NewStageProgress(writer io.Writer, stages []pipeline.Stage) *StageProgress {
	bar := progressbar.NewOptions(len(stages),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Starting run...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &StageProgress{bar: bar, stages: stages}
}

// Observe marks every stage before stage as done. It is meant to be passed
// to Pipeline.OnStage.
func (p *StageProgress) Observe(stage pipeline.Stage) {
	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s...[reset]", stage))
	for i, s := range p.stages {
		if s == stage {
			p.advanceTo(i)
			return
		}
	}
}

// Finish completes the bar.
func (p *StageProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Completed returns the number of stages marked done.
func (p *StageProgress) Completed() int {
	return p.current
}

func (p *StageProgress) advanceTo(n int) {
	if n <= p.current {
		return
	}
	if err := p.bar.Add(n - p.current); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
	p.current = n
}
