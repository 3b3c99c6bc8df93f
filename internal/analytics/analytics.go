// Package analytics derives per-sphere statistics from committed time
// entries. Everything here is read-only over its inputs.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"workingonit/backend/internal/model"
)

const (
	underRepresentedPct = 10.0
	overRepresentedPct  = 40.0
)

type SphereStat struct {
	Sphere         model.Sphere `json:"sphere"`
	Name           string       `json:"name"`
	Icon           string       `json:"icon"`
	Color          string       `json:"color"`
	TotalMs        int64        `json:"totalMs"`
	TotalMinutes   int64        `json:"totalMinutes"`
	Sessions       int          `json:"sessions"`
	AverageFeeling float64      `json:"averageFeeling"`
	Percentage     float64      `json:"percentage"`
}

type Period struct {
	TotalMs      int64 `json:"totalMs"`
	TotalMinutes int64 `json:"totalMinutes"`
	Sessions     int   `json:"sessions"`
}

type Report struct {
	Spheres         []SphereStat `json:"spheres"`
	BalanceScore    int          `json:"balanceScore"`
	BalanceLabel    string       `json:"balanceLabel"`
	Recommendations []string     `json:"recommendations"`
	Today           Period       `json:"today"`
	Week            Period       `json:"week"`
	AllTime         Period       `json:"allTime"`
}

// Build assembles the full report. Day and week boundaries are taken in loc;
// weeks start on Monday.
func Build(entries []model.TimeEntry, activities []model.Activity, now time.Time, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}
	kept := Attributed(entries, activities)
	stats := Distribution(kept, activities)
	score := BalanceScore(stats)

	dayStart := startOfDay(now, loc)
	weekStart := startOfWeek(now, loc)

	return Report{
		Spheres:         stats,
		BalanceScore:    score,
		BalanceLabel:    BalanceLabel(score),
		Recommendations: Recommendations(stats),
		Today:           total(kept, dayStart),
		Week:            total(kept, weekStart),
		AllTime:         total(kept, time.Time{}),
	}
}

// Attributed drops entries whose activity no longer exists.
func Attributed(entries []model.TimeEntry, activities []model.Activity) []model.TimeEntry {
	known := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		known[a.ID] = struct{}{}
	}
	out := make([]model.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := known[e.ActivityID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Distribution sums tracked time per sphere, largest first. Spheres with no
// time are left out.
func Distribution(entries []model.TimeEntry, activities []model.Activity) []SphereStat {
	sphereOf := make(map[string]model.Sphere, len(activities))
	for _, a := range activities {
		sphereOf[a.ID] = a.Sphere
	}

	type acc struct {
		ms       int64
		sessions int
		feeling  int
	}
	sums := make(map[model.Sphere]*acc)
	var grand int64
	for _, e := range entries {
		sphere, ok := sphereOf[e.ActivityID]
		if !ok {
			continue
		}
		a := sums[sphere]
		if a == nil {
			a = &acc{}
			sums[sphere] = a
		}
		a.ms += e.DurationMs
		a.sessions++
		a.feeling += e.FeelingRating
		grand += e.DurationMs
	}

	stats := make([]SphereStat, 0, len(sums))
	for _, sphere := range model.Spheres {
		a, ok := sums[sphere]
		if !ok {
			continue
		}
		info := sphere.Info()
		stat := SphereStat{
			Sphere:       sphere,
			Name:         info.Name,
			Icon:         info.Icon,
			TotalMs:      a.ms,
			TotalMinutes: a.ms / 60000,
			Sessions:     a.sessions,
		}
		if len(info.Colors) > 0 {
			stat.Color = info.Colors[0]
		}
		if a.sessions > 0 {
			stat.AverageFeeling = round1(float64(a.feeling) / float64(a.sessions))
		}
		if grand > 0 {
			stat.Percentage = round1(100 * float64(a.ms) / float64(grand))
		}
		stats = append(stats, stat)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalMs > stats[j].TotalMs
	})
	return stats
}

// BalanceScore is the Shannon entropy of the time distribution normalised to
// 0..100: one sphere scores 0, all seven equal score 100.
func BalanceScore(stats []SphereStat) int {
	var grand int64
	for _, s := range stats {
		grand += s.TotalMs
	}
	if grand <= 0 {
		return 0
	}

	var h float64
	for _, s := range stats {
		if s.TotalMs <= 0 {
			continue
		}
		p := float64(s.TotalMs) / float64(grand)
		h -= p * math.Log(p)
	}
	score := int(math.Round(100 * h / math.Log(float64(len(model.Spheres)))))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func BalanceLabel(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Needs work"
	}
}

// Recommendations lists unused, under-represented and over-represented
// spheres. With no tracked time there is nothing to recommend.
func Recommendations(stats []SphereStat) []string {
	if len(stats) == 0 {
		return []string{}
	}

	bySphere := make(map[model.Sphere]SphereStat, len(stats))
	for _, s := range stats {
		bySphere[s.Sphere] = s
	}

	recs := make([]string, 0)
	for _, sphere := range model.Spheres {
		if _, ok := bySphere[sphere]; ok {
			continue
		}
		info := sphere.Info()
		recs = append(recs, fmt.Sprintf("%s You haven't tracked any %s time yet. Try adding an activity for it.", info.Icon, info.Name))
	}
	for _, s := range stats {
		switch {
		case s.Percentage < underRepresentedPct:
			recs = append(recs, fmt.Sprintf("%s %s gets only %.1f%% of your time. Consider giving it more attention.", s.Icon, s.Name, s.Percentage))
		case s.Percentage > overRepresentedPct:
			recs = append(recs, fmt.Sprintf("%s %s takes %.1f%% of your time. Consider balancing it with other spheres.", s.Icon, s.Name, s.Percentage))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Your time is well balanced across all spheres. Keep it up!")
	}
	return recs
}

// TodayEntries returns the attributed entries started today in loc, newest
// first.
func TodayEntries(entries []model.TimeEntry, activities []model.Activity, now time.Time, loc *time.Location) []model.TimeEntry {
	if loc == nil {
		loc = time.UTC
	}
	dayStart := startOfDay(now, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make([]model.TimeEntry, 0)
	for _, e := range Attributed(entries, activities) {
		if !e.StartTime.Before(dayStart) && e.StartTime.Before(dayEnd) {
			out = append(out, e)
		}
	}
	NewestFirst(out)
	return out
}

// NewestFirst sorts entries by start time, latest first.
func NewestFirst(entries []model.TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})
}

func total(entries []model.TimeEntry, since time.Time) Period {
	var p Period
	for _, e := range entries {
		if !since.IsZero() && e.StartTime.Before(since) {
			continue
		}
		p.TotalMs += e.DurationMs
		p.Sessions++
	}
	p.TotalMinutes = p.TotalMs / 60000
	return p
}

func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func startOfWeek(now time.Time, loc *time.Location) time.Time {
	day := startOfDay(now, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
