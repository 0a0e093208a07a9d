package adventure

import (
	"time"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
)

// ObjectiveProgress is the evaluation result for a single objective.
type ObjectiveProgress struct {
	Objective Objective `json:"objective"`
	Satisfied bool      `json:"satisfied"`
	Current   int       `json:"current"`
	Required  int       `json:"required"`
}

// EvaluateNode evaluates a node's objectives as a conjunction: the node is
// satisfied only when every objective is.
func EvaluateNode(n Node, snap tasks.Snapshot, now time.Time, loc *time.Location) ([]ObjectiveProgress, bool) {
	progress := make([]ObjectiveProgress, 0, len(n.Objectives))
	satisfied := true
	for _, o := range n.Objectives {
		p := EvaluateObjective(o, snap, now, loc)
		if !p.Satisfied {
			satisfied = false
		}
		progress = append(progress, p)
	}
	return progress, satisfied
}

// EvaluateObjective computes satisfaction and a progress fraction for one
// objective against a task snapshot. Pure: no state is read or written.
func EvaluateObjective(o Objective, snap tasks.Snapshot, now time.Time, loc *time.Location) ObjectiveProgress {
	if loc == nil {
		loc = time.UTC
	}
	switch o.Type {
	case ObjectiveCompleteTask:
		return evalCompleteTask(o, snap, now, loc)
	case ObjectiveDailyQuantity:
		return evalDailyQuantity(o, snap, now, loc)
	case ObjectivePriorityClear:
		return evalPriorityClear(o, snap)
	case ObjectiveCategoryDiversity:
		return evalCategoryDiversity(o, snap, now, loc)
	case ObjectiveCompleteAllAvailable:
		return evalCompleteAllAvailable(o, snap)
	default:
		// Unknown objective types never block a node.
		return ObjectiveProgress{Objective: o, Satisfied: true, Current: 0, Required: 0}
	}
}

func evalCompleteTask(o Objective, snap tasks.Snapshot, now time.Time, loc *time.Location) ObjectiveProgress {
	p := ObjectiveProgress{Objective: o, Required: 1}
	if o.TaskID != "" {
		for _, t := range snap.Tasks {
			if t.ID != o.TaskID {
				continue
			}
			if t.Completed {
				p.Satisfied = true
				p.Current = 1
			}
			return p
		}
		// The referenced task vanished from the provider (deleted or moved).
		// Fall through to the unbound rule so the node cannot dead-end.
	}
	if countCompletedToday(snap, now, loc) >= 1 {
		p.Satisfied = true
		p.Current = 1
	}
	return p
}

func evalDailyQuantity(o Objective, snap tasks.Snapshot, now time.Time, loc *time.Location) ObjectiveProgress {
	required := o.Count
	if required < 1 {
		required = 1
	}
	current := countCompletedToday(snap, now, loc)
	return ObjectiveProgress{
		Objective: o,
		Satisfied: current >= required,
		Current:   current,
		Required:  required,
	}
}

func evalPriorityClear(o Objective, snap tasks.Snapshot) ObjectiveProgress {
	total := 0
	completed := 0
	for _, t := range snap.Tasks {
		if t.Priority != o.Priority {
			continue
		}
		total++
		if t.Completed {
			completed++
		}
	}
	return ObjectiveProgress{
		Objective: o,
		Satisfied: completed == total,
		Current:   completed,
		Required:  total,
	}
}

func evalCategoryDiversity(o Objective, snap tasks.Snapshot, now time.Time, loc *time.Location) ObjectiveProgress {
	required := o.CategoryCount
	if required < 1 {
		required = 1
	}
	seen := map[string]struct{}{}
	for _, t := range snap.Tasks {
		if !completedToday(t, now, loc) {
			continue
		}
		seen[t.List] = struct{}{}
	}
	return ObjectiveProgress{
		Objective: o,
		Satisfied: len(seen) >= required,
		Current:   len(seen),
		Required:  required,
	}
}

func evalCompleteAllAvailable(o Objective, snap tasks.Snapshot) ObjectiveProgress {
	total := len(snap.Tasks)
	completed := len(snap.Completed())
	return ObjectiveProgress{
		Objective: o,
		Satisfied: completed == total,
		Current:   completed,
		Required:  total,
	}
}

// completedToday applies the canonical day-boundary rule: a task counts iff
// its completion timestamp falls inside the user-local calendar day of now.
func completedToday(t tasks.Task, now time.Time, loc *time.Location) bool {
	if !t.Completed || t.CompletedAt == nil {
		return false
	}
	ty, tm, td := t.CompletedAt.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return ty == ny && tm == nm && td == nd
}

func countCompletedToday(snap tasks.Snapshot, now time.Time, loc *time.Location) int {
	count := 0
	for _, t := range snap.Tasks {
		if completedToday(t, now, loc) {
			count++
		}
	}
	return count
}
