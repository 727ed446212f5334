package workouts

import (
	"context"
	"time"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Analyzer computes derived views (stats, monthly calendar) over the
// workout logs loaded from the repo. All computations are pure once the
// logs are in memory; "today" is always injected by the caller.
type Analyzer struct {
	repo workoutsRepo
}

func NewAnalyzer(repo workoutsRepo) *Analyzer {
	return &Analyzer{
		repo: repo,
	}
}

func (a *Analyzer) Stats(ctx context.Context, userID string, today time.Time) (_ *WorkoutStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	logs, err := a.repo.ListAll(ctx, WorkoutParams{UserID: userID})
	if err != nil {
		return nil, err
	}

	stats := ComputeStats(logs, today)
	return &stats, nil
}

type CalendarDay struct {
	Date     time.Time `json:"date"`
	Workouts int       `json:"workouts"`
	IsToday  bool      `json:"isToday"`
}

type CalendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// MonthlyCalendar returns one entry per day of the given month with the
// number of workouts logged on that day.
func (a *Analyzer) MonthlyCalendar(
	ctx context.Context,
	userID string,
	year int,
	month time.Month,
	today time.Time,
) (_ *CalendarResponse, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.monthlyCalendar")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))
	span.SetAttributes(attribute.Int("year", year))
	span.SetAttributes(attribute.Int("month", int(month)))

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := AddDays(monthStart.AddDate(0, 1, 0), -1)

	logs, err := a.repo.ListAll(ctx, WorkoutParams{
		UserID: userID,
		From:   &monthStart,
		To:     &monthEnd,
	})
	if err != nil {
		return nil, err
	}

	day2count := make(map[time.Time]int)
	for _, l := range logs {
		day2count[DateOnly(l.WorkoutDate)]++
	}

	todayDate := DateOnly(today)
	calendar := &CalendarResponse{
		Year:  year,
		Month: int(month),
	}
	for day := monthStart; !day.After(monthEnd); day = AddDays(day, 1) {
		calendar.Days = append(calendar.Days, CalendarDay{
			Date:     day,
			Workouts: day2count[day],
			IsToday:  day.Equal(todayDate),
		})
	}

	return calendar, nil
}
