package stats

import (
	"sort"

	"kyri56xcaesar/tasktracker/internal/models"
)

// Event is an all-day calendar entry.
type Event struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	AllDay bool   `json:"allDay"`
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	Color  string `json:"color"`
}

var priorityColors = map[models.Priority]string{
	models.PriorityLow:    "#6c757d",
	models.PriorityMedium: "#0d6efd",
	models.PriorityHigh:   "#fd7e14",
	models.PriorityUrgent: "#dc3545",
}

// CalendarEvents lists task due dates and project end dates, oldest first.
func CalendarEvents(projects []models.Project, tasks []models.Task) []Event {
	out := make([]Event, 0, len(tasks)+len(projects))
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		color := priorityColors[t.Priority]
		if t.Status == models.TaskCompleted {
			color = "#198754"
		}
		out = append(out, Event{
			ID:     t.ID,
			Title:  t.Title,
			Start:  t.DueDate.Format("2006-01-02"),
			AllDay: true,
			Kind:   "task",
			URL:    "/tasks/" + t.ID,
			Color:  color,
		})
	}
	for _, p := range projects {
		if p.EndDate == nil {
			continue
		}
		out = append(out, Event{
			ID:     p.ID,
			Title:  p.Name + " (deadline)",
			Start:  p.EndDate.Format("2006-01-02"),
			AllDay: true,
			Kind:   "project",
			URL:    "/projects/" + p.ID,
			Color:  "#6f42c1",
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
