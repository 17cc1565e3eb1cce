package lead

import (
	"context"
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"
)

const (
	recentWindow = 30 * 24 * time.Hour
	chartMonths  = 6
)

// Pipeline groups all the leads by status. Every status has a stage, even when empty.
func (svc *service) Pipeline(ctx context.Context) ([]PipelineStage, error) {
	leads, err := svc.repo.QueryLeads(ctx, QueryFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying leads")
	}
	return groupByStatus(leads), nil
}

func groupByStatus(leads []Lead) []PipelineStage {
	stages := make([]PipelineStage, len(Statuses))
	index := make(map[string]int, len(Statuses))
	for i, status := range Statuses {
		stages[i] = PipelineStage{Status: status, Leads: []Lead{}}
		index[status] = i
	}
	for _, l := range leads {
		if i, ok := index[l.Status]; ok {
			stages[i].Leads = append(stages[i].Leads, l)
			stages[i].Count++
		}
	}
	return stages
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	leads, err := svc.repo.QueryLeads(ctx, QueryFilter{})
	if err != nil {
		return Stats{}, pkgerrors.Wrap(err, "querying leads")
	}
	followups, err := svc.followups.CountFollowups(ctx)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(err, "counting followups")
	}
	stats := computeStats(leads, svc.now())
	stats.TotalFollowups = followups
	return stats, nil
}

func computeStats(leads []Lead, now time.Time) Stats {
	stats := Stats{
		TotalLeads:         len(leads),
		StatusDistribution: []StatusCount{},
	}

	counts := make(map[string]int, len(Statuses))
	since := now.Add(-recentWindow)
	for _, l := range leads {
		counts[l.Status]++
		if !l.CreatedAt.Before(since) {
			stats.RecentLeads++
		}
	}
	stats.ConvertedLeads = counts[StatusConverted]
	if stats.TotalLeads > 0 {
		stats.ConversionRate = int(math.Round(float64(stats.ConvertedLeads) / float64(stats.TotalLeads) * 100))
	}
	for _, status := range Statuses {
		if c := counts[status]; c > 0 {
			stats.StatusDistribution = append(stats.StatusDistribution, StatusCount{Status: status, Count: c})
		}
	}

	// last chartMonths calendar months, oldest first; the current month is the last one.
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats.ChartData = make([]MonthCount, chartMonths)
	for i := 0; i < chartMonths; i++ {
		month := firstOfMonth.AddDate(0, i-(chartMonths-1), 0)
		stats.ChartData[i] = MonthCount{Name: month.Format("Jan"), Year: month.Year()}
	}
	for _, l := range leads {
		created := l.CreatedAt.UTC()
		monthsAgo := (now.Year()-created.Year())*12 + int(now.Month()-created.Month())
		if monthsAgo >= 0 && monthsAgo < chartMonths {
			stats.ChartData[chartMonths-1-monthsAgo].Leads++
		}
	}
	return stats
}
