package session

import (
	"time"

	"digistation/internal/capture"
	"digistation/internal/notifications"
)

// SummaryRow is one event in a session summary.
type SummaryRow struct {
	Sequence      int
	Stem          string
	CatalogNumber string
	Status        string
	Level         capture.Severity
	RawPath       string
	DerivedPath   string
}

// Summary describes a finished session.
type Summary struct {
	SessionID  string
	Path       string
	Username   string
	Events     int
	Renamed    int
	Failed     int
	Collisions int
	Elapsed    time.Duration
	Rows       []SummaryRow
}

// Notification converts the summary for the notifier.
func (s Summary) Notification() notifications.SessionSummary {
	return notifications.SessionSummary{
		SessionID:  s.SessionID,
		Path:       s.Path,
		Username:   s.Username,
		Events:     s.Events,
		Renamed:    s.Renamed,
		Failed:     s.Failed,
		Collisions: s.Collisions,
		Elapsed:    s.Elapsed,
	}
}

func buildSummary(sess *capture.Session, end time.Time, failed, collisions int) Summary {
	events := sess.Events()
	summary := Summary{
		SessionID:  sess.Info.ID,
		Path:       sess.Info.Path,
		Username:   sess.Info.Username,
		Events:     len(events),
		Failed:     failed,
		Collisions: collisions,
		Rows:       make([]SummaryRow, 0, len(events)),
	}
	if m := sess.Metrics(end); m.ElapsedTime != nil {
		summary.Elapsed = *m.ElapsedTime
	}
	for i := range events {
		e := &events[i]
		if e.RawRename.Done() {
			summary.Renamed++
		}
		if e.DerivedRename.Done() {
			summary.Renamed++
		}
		raw, _ := e.CurrentPath(capture.KindRaw)
		derived, _ := e.CurrentPath(capture.KindDerived)
		summary.Rows = append(summary.Rows, SummaryRow{
			Sequence:      e.Sequence,
			Stem:          e.OriginalFilename,
			CatalogNumber: capture.StringValue(e.CatalogNumber),
			Status:        e.Status,
			Level:         e.StatusLevel,
			RawPath:       raw,
			DerivedPath:   derived,
		})
	}
	return summary
}
