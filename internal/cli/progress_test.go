package cli

import (
	"bytes"
	"testing"

	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestStageProgress(t *testing.T) {
	var out bytes.Buffer
	progress := NewStageProgress(&out, pipeline.Stages())

	progress.Observe(pipeline.StageAggregate)
	assert.Equal(t, 0, progress.Completed())

	progress.Observe(pipeline.StagePersist)
	assert.Equal(t, 2, progress.Completed())

	progress.Observe(pipeline.StageForecast)
	assert.Equal(t, 2, progress.Completed(), "progress never moves backwards")

	progress.Observe("unknown")
	assert.Equal(t, 2, progress.Completed())

	progress.Finish()
}
