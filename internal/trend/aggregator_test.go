package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	err     error
	entries []model.Entry
	after   model.Month
	through model.Month
}

func (f *fakeReader) GetEntriesInRange(_ context.Context, after, through model.Month) ([]model.Entry, error) {
	f.after, f.through = after, through
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Entry
	for _, e := range f.entries {
		if e.Month.After(after) && !e.Month.After(through) {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(code string, month model.Month, value *float64, trend model.TrendClass) model.Entry {
	return model.Entry{CategoryCode: code, BusinessUnit: "BB1", Month: month, Value: value, Trend: trend}
}

func TestAggregate_GroupsAndAligns(t *testing.T) {
	oct := model.NewMonth(2025, time.October)
	nov := oct.AddMonths(1)
	dec := oct.AddMonths(2)

	reader := &fakeReader{entries: []model.Entry{
		entry("5000-A001", oct, model.Float(10), "sales_seasonal_cycle"),
		entry("5000-A001", nov, nil, "sales_seasonal_cycle"),
		entry("5000-A001", dec, model.Float(12), "sales_seasonal_cycle"),
		entry("6000-A001", dec, model.Float(4), ""),
		entry("6000-A001", oct.AddMonths(-5), model.Float(99), ""),
	}}

	window, err := NewAggregator(reader).Aggregate(context.Background(), dec, 3)
	require.NoError(t, err)

	assert.Equal(t, oct.AddMonths(-1), reader.after)
	assert.Equal(t, dec, reader.through)
	assert.Equal(t, []model.Month{oct, nov, dec}, window.Months)
	assert.Equal(t, []model.TrendClass{"sales_seasonal_cycle", model.TrendStatic}, window.Classes())

	sales := window.Series["sales_seasonal_cycle"][model.SeriesKey{CategoryCode: "5000-A001", BusinessUnit: "BB1"}]
	require.Len(t, sales, 3)
	assert.Nil(t, sales[1].Value, "NULL value stays absent")
	assert.InDelta(t, 12, *sales[2].Value, 1e-9)

	cogs := window.Series[model.TrendStatic][model.SeriesKey{CategoryCode: "6000-A001", BusinessUnit: "BB1"}]
	require.Len(t, cogs, 3, "series are aligned to the observed months")
	assert.Nil(t, cogs[0].Value)
	assert.Nil(t, cogs[1].Value)
	assert.InDelta(t, 4, *cogs[2].Value, 1e-9)
}

func TestAggregate_InvalidLookback(t *testing.T) {
	_, err := NewAggregator(&fakeReader{}).Aggregate(context.Background(), model.NewMonth(2025, time.December), 0)
	assert.ErrorIs(t, err, ErrInvalidLookback)
}

func TestAggregate_ReadFailure(t *testing.T) {
	boom := errors.New("disk gone")
	window, err := NewAggregator(&fakeReader{err: boom}).Aggregate(context.Background(), model.NewMonth(2025, time.December), 12)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, window)
}

func TestAggregate_EmptyWindow(t *testing.T) {
	window, err := NewAggregator(&fakeReader{}).Aggregate(context.Background(), model.NewMonth(2025, time.December), 12)
	require.NoError(t, err)
	assert.Empty(t, window.Months)
	assert.Empty(t, window.Classes())
	assert.Equal(t, 0, window.SeriesCount())
}

func TestRecent(t *testing.T) {
	points := []model.HistoricalPoint{
		{Value: model.Float(1)},
		{Value: nil},
		{Value: model.Float(3)},
		{Value: model.Float(4)},
	}
	assert.Equal(t, []float64{3, 4}, Recent(points, 3))
	assert.Equal(t, []float64{1, 3, 4}, Recent(points, 10))
}
