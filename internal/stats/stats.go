// Package stats derives summary figures from a task collection. Nothing here
// is persisted; callers recompute from the current tasks.
package stats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"taskboard/internal/model"
)

const MaxWindows = 52

type Stats struct {
	Completed      int `json:"completed"`
	InProgress     int `json:"inProgress"`
	NotStarted     int `json:"notStarted"`
	Important      int `json:"important"`
	Total          int `json:"total"`
	CompletionRate int `json:"completionRate"`
}

// Compute counts tasks by status. CompletionRate is a rounded percentage and
// is 0 for an empty collection.
func Compute(tasks []model.Task) Stats {
	var s Stats
	for _, t := range tasks {
		switch t.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusNotStarted:
			s.NotStarted++
		}
		if t.Important {
			s.Important++
		}
	}
	s.Total = len(tasks)
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) * 100 / float64(s.Total)))
	}
	return s
}

type Granularity string

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// ParseGranularity accepts weekly|monthly|yearly and the short forms
// week|month|year. Empty input means monthly.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month":
		return Monthly, nil
	case "weekly", "week":
		return Weekly, nil
	case "yearly", "year":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: unknown granularity %q", model.ErrValidation, s)
}

type Bucket struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Completed int       `json:"completed"`
}

// Contains reports whether t falls inside the bucket, both edges included.
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

// Windows returns the last n calendar periods ending with the one containing
// at, oldest first. Weeks start on Monday. Boundaries use at's location.
func Windows(g Granularity, n int, at time.Time) ([]Bucket, error) {
	if n < 1 || n > MaxWindows {
		return nil, fmt.Errorf("%w: windows must be between 1 and %d", model.ErrValidation, MaxWindows)
	}
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: at.Location()}
	cur := cfg.With(at)

	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		var start time.Time
		switch g {
		case Weekly:
			start = cur.BeginningOfWeek().AddDate(0, 0, -7*i)
		case Monthly:
			start = cur.BeginningOfMonth().AddDate(0, -i, 0)
		case Yearly:
			start = cur.BeginningOfYear().AddDate(-i, 0, 0)
		default:
			return nil, fmt.Errorf("%w: unknown granularity %q", model.ErrValidation, g)
		}

		period := cfg.With(start)
		b := Bucket{Start: start}
		switch g {
		case Weekly:
			b.End = period.EndOfWeek()
			year, week := start.ISOWeek()
			b.Label = fmt.Sprintf("%d-W%02d", year, week)
		case Monthly:
			b.End = period.EndOfMonth()
			b.Label = start.Format("Jan 2006")
		case Yearly:
			b.End = period.EndOfYear()
			b.Label = start.Format("2006")
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// WindowedSeries counts completed tasks per period for the last n periods
// ending at at. A task belongs to the period its Date falls in.
func WindowedSeries(tasks []model.Task, g Granularity, n int, at time.Time) ([]Bucket, error) {
	buckets, err := Windows(g, n, at)
	if err != nil {
		return nil, err
	}
	loc := at.Location()
	for _, t := range tasks {
		if t.Status != model.StatusCompleted {
			continue
		}
		d := t.Date.In(loc)
		for i := range buckets {
			if buckets[i].Contains(d) {
				buckets[i].Completed++
				break
			}
		}
	}
	return buckets, nil
}
