// Package stats derives dashboard numbers from already visible tasks.
package stats

import (
	"math"
	"sort"
	"time"

	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/utils"
)

const (
	upcomingWindow = 7 * 24 * time.Hour
	recentWindow   = 7 * 24 * time.Hour
)

// CompletionPercentage is round(completed/total*100), 0 for an empty project.
func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Progress is the completion percentage of a task set.
func Progress(tasks []models.Task) int {
	done := utils.Filter(tasks, func(t models.Task) bool { return t.Status == models.TaskCompleted })
	return CompletionPercentage(len(done), len(tasks))
}

type Hours struct {
	Estimated  float64 `json:"estimated"`
	Actual     float64 `json:"actual"`
	Difference float64 `json:"difference"`
}

type Project struct {
	TotalTasks           int                       `json:"totalTasks"`
	CompletionPercentage int                       `json:"completionPercentage"`
	StatusCounts         map[models.TaskStatus]int `json:"statusCounts"`
	PriorityCounts       map[models.Priority]int   `json:"priorityCounts"`
	HoursStats           Hours                     `json:"hoursStats"`
	IsOnSchedule         bool                      `json:"isOnSchedule"`
	UpcomingDeadlines    []models.Task             `json:"upcomingDeadlines"`
}

func ForProject(tasks []models.Task, now time.Time) Project {
	byStatus := statusCounts(tasks)
	hours := sumHours(tasks)

	upcoming := utils.Filter(tasks, func(t models.Task) bool {
		if t.DueDate == nil || t.Status == models.TaskCompleted {
			return false
		}
		return !t.DueDate.Before(now) && !t.DueDate.After(now.Add(upcomingWindow))
	})
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(*upcoming[j].DueDate)
	})

	return Project{
		TotalTasks:           len(tasks),
		CompletionPercentage: CompletionPercentage(byStatus[models.TaskCompleted], len(tasks)),
		StatusCounts:         byStatus,
		PriorityCounts:       priorityCounts(tasks),
		HoursStats:           hours,
		IsOnSchedule:         hours.Estimated >= hours.Actual,
		UpcomingDeadlines:    upcoming,
	}
}

type Tasks struct {
	TasksByStatus     map[models.TaskStatus]int `json:"tasksByStatus"`
	TasksByPriority   map[models.Priority]int   `json:"tasksByPriority"`
	OverdueTasks      int                       `json:"overdueTasks"`
	DueToday          int                       `json:"dueToday"`
	AssignedToMe      *int                      `json:"assignedToMe,omitempty"`
	RecentlyCompleted int                       `json:"recentlyCompleted"`
	TotalTasks        int                       `json:"totalTasks"`
}

// ForTasks aggregates the caller's task universe. AssignedToMe is only
// reported for non-admins.
func ForTasks(tasks []models.Task, p models.Principal, now time.Time) Tasks {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := Tasks{
		TasksByStatus:   statusCounts(tasks),
		TasksByPriority: priorityCounts(tasks),
		TotalTasks:      len(tasks),
	}

	mine := 0
	for _, t := range tasks {
		if t.Overdue(now) {
			out.OverdueTasks++
		}
		if t.DueDate != nil && t.Status != models.TaskCompleted &&
			!t.DueDate.Before(dayStart) && t.DueDate.Before(dayEnd) {
			out.DueToday++
		}
		if t.CompletedAt != nil && t.Status == models.TaskCompleted &&
			!t.CompletedAt.Before(now.Add(-recentWindow)) {
			out.RecentlyCompleted++
		}
		if t.AssignedTo == p.ID {
			mine++
		}
	}
	if !p.IsAdmin() {
		out.AssignedToMe = &mine
	}

	return out
}

func statusCounts(tasks []models.Task) map[models.TaskStatus]int {
	out := make(map[models.TaskStatus]int, 4)
	for _, s := range models.TaskStatuses() {
		out[s] = 0
	}
	for _, t := range tasks {
		out[t.Status]++
	}
	return out
}

func priorityCounts(tasks []models.Task) map[models.Priority]int {
	out := make(map[models.Priority]int, 4)
	for _, p := range models.Priorities() {
		out[p] = 0
	}
	for _, t := range tasks {
		out[t.Priority]++
	}
	return out
}

func sumHours(tasks []models.Task) Hours {
	sum := func(a, b float64) float64 { return a + b }
	est := utils.Reduce(utils.Map(tasks, func(t models.Task) float64 { return t.EstimatedHours }), 0, sum)
	act := utils.Reduce(utils.Map(tasks, func(t models.Task) float64 { return t.ActualHours }), 0, sum)
	return Hours{Estimated: est, Actual: act, Difference: est - act}
}
