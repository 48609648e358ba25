package cli

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/forecast"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/notify"
	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRenderRunSummary_Empty(t *testing.T) {
	out := RenderRunSummary(&pipeline.RunSummary{ID: uuid.New()})
	assert.Contains(t, out, "nothing to forecast")
}

func TestRenderRunSummary(t *testing.T) {
	jan := model.NewMonth(2026, time.January)
	summary := &pipeline.RunSummary{
		ID:             uuid.MustParse("6f1c2f0e-8f5e-4a43-9d4c-0b8f5a1e2d3c"),
		Reference:      model.NewMonth(2025, time.December),
		ForecastMonths: []model.Month{jan, jan.AddMonths(1), jan.AddMonths(2)},
		Trained: []pipeline.TrainedClass{
			{Class: "static", Kind: forecast.KindNaive, Series: 4, Failed: 1},
		},
		SkippedClasses: []pipeline.SkippedClass{
			{Class: "mystery", Stage: pipeline.StageTrain, Err: errors.New("no strategy mapped")},
		},
		OmittedSeries: []pipeline.OmittedSeries{
			{Class: "static", Key: model.SeriesKey{CategoryCode: "5000-A001", BusinessUnit: "BB1"}, Err: forecast.ErrInsufficientContext},
		},
		Forecasts:     pipeline.ChangeCounts{Created: 9, Unchanged: 3},
		KPIs:          pipeline.ChangeCounts{Updated: 13},
		Notifications: 2,
		DeliveryFailures: []notify.DeliveryFailure{
			{EmployeeID: "E1", Channel: "email", Err: fmt.Errorf("%w: timeout", common.ErrDelivery)},
		},
		Duration: 1500 * time.Millisecond,
	}

	out := RenderRunSummary(summary)
	for _, want := range []string{
		"Forecast Run Complete",
		"6f1c2f0e-8f5e-4a43-9d4c-0b8f5a1e2d3c",
		"12-2025",
		"01-2026 to 03-2026",
		"static (naive): 4 series, 1 not trained",
		"mystery skipped at train",
		"5000-A001::BB1 omitted",
		"9 created, 0 updated, 3 unchanged",
		"0 created, 13 updated, 0 unchanged",
		"2 sent",
		"email delivery to E1",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderNotifications(t *testing.T) {
	assert.Contains(t, RenderNotifications(nil), "No notifications.")

	out := RenderNotifications([]model.Notification{
		{ID: 7, Subject: "KPI alert: 1 target at risk", CreatedAt: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)},
		{ID: 8, Subject: "older", IsRead: true, CreatedAt: time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)},
	})
	assert.Contains(t, out, "Subject")
	assert.Contains(t, out, "KPI alert: 1 target at risk")
	assert.Contains(t, out, "2026-01-02 09:30")
	assert.Contains(t, out, SuccessIcon)
}

func TestRenderNotification(t *testing.T) {
	out := RenderNotification(model.Notification{
		ID:      3,
		Type:    model.NotificationTypeKPIAlert,
		Subject: "KPI alert",
		Body:    "Hi Manager E1,",
	})
	assert.Contains(t, out, "KPI alert")
	assert.Contains(t, out, "KPI_ALERT")
	assert.Contains(t, out, "Hi Manager E1,")
}
