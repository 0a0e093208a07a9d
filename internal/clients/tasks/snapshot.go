package tasks

import "time"

// Priority tiers as reported by the task provider.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is one to-do item as seen by the provider at snapshot time.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	List        string     `json:"list"`
	Priority    string     `json:"priority"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Snapshot is a point-in-time read of the user's task lists. Degraded marks a
// snapshot served from cache (or empty) because the provider was unreachable.
type Snapshot struct {
	Tasks     []Task    `json:"tasks"`
	Lists     []string  `json:"lists"`
	FetchedAt time.Time `json:"fetched_at"`
	Degraded  bool      `json:"degraded"`
}

func (s Snapshot) Incomplete() []Task {
	var out []Task
	for _, t := range s.Tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func (s Snapshot) Completed() []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.Completed {
			out = append(out, t)
		}
	}
	return out
}
