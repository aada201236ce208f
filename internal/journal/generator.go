package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
)

// GenerateMarkdown produces a markdown summary of journal entries grouped
// by date, newest date first.
func GenerateMarkdown(entries []models.JournalEntry) string {
	if len(entries) == 0 {
		return "# Activity Journal\n\nNo activity recorded.\n"
	}

	var b strings.Builder
	b.WriteString("# Activity Journal\n\n")

	for _, group := range groupByDate(entries) {
		b.WriteString(fmt.Sprintf("## %s\n\n", group.date))
		for i := range group.entries {
			entry := &group.entries[i]
			ts := entry.CreatedAt.Format("15:04:05")
			icon := eventIcon(entry.EventType)
			b.WriteString(fmt.Sprintf("- %s **[%s]** %s %s\n", icon, ts, entry.Summary, sourceTag(entry.SourceModule)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// dateGroup holds entries for a single date.
type dateGroup struct {
	date    string
	entries []models.JournalEntry
}

// groupByDate groups chronologically ordered entries by YYYY-MM-DD,
// returning groups newest date first.
func groupByDate(entries []models.JournalEntry) []dateGroup {
	groupMap := make(map[string][]models.JournalEntry)
	var dateOrder []string

	for i := range entries {
		date := entries[i].CreatedAt.Format("2006-01-02")
		if _, exists := groupMap[date]; !exists {
			dateOrder = append(dateOrder, date)
		}
		groupMap[date] = append(groupMap[date], entries[i])
	}

	groups := make([]dateGroup, len(dateOrder))
	for i, date := range dateOrder {
		groups[len(dateOrder)-1-i] = dateGroup{
			date:    date,
			entries: groupMap[date],
		}
	}
	return groups
}

// eventIcon returns a text label for the event type.
func eventIcon(eventType string) string {
	switch eventType {
	case TopicRecordCreated:
		return "[NEW]"
	case TopicRecordUpdated:
		return "[UPD]"
	case TopicRecordDeleted:
		return "[DEL]"
	case TopicGenerationCompleted:
		return "[GEN]"
	default:
		return "[EVENT]"
	}
}

// sourceTag returns a formatted source module label.
func sourceTag(source string) string {
	if source == "" {
		return ""
	}
	return fmt.Sprintf("_(via %s)_", source)
}

// ParseDuration parses a human-friendly duration string like "7d", "30d",
// "24h". Falls back to the given default if parsing fails.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}

	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		var days int
		if _, err := fmt.Sscanf(numStr, "%d", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
