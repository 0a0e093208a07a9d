package adventure

import (
	"fmt"
	"math"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

const (
	minPathNodes = 4
	// Hard cap so task-rich users never get an unbounded graph.
	maxPathNodes = 15

	miniBossBaselineCount = 3
	bossBaselineCount     = 5
	// A diversity objective only makes sense with a reasonable task pool.
	bossDiversityMinTasks   = 5
	bossDiversityCategories = 2

	regularBaseXP     = 40
	regularStepXP     = 15
	miniBossBaseXP    = 120
	bossBaseXP        = 250
	tasksPerPathLevel = 3
)

// Generate produces the node graph for one (user, world) pair. Deterministic
// for a given world and snapshot. Callers persist the result; a path is never
// regenerated once stored.
//
// If scaled generation produces an invalid graph for any reason the fixed
// minimal layout is returned instead: the adventure layer must never be
// unplayable because of a generation error.
func Generate(w World, snap tasks.Snapshot, log *logger.Logger) Path {
	p, err := generateScaled(w, snap)
	if err != nil {
		if log != nil {
			log.Warn("Scaled path generation failed, using minimal layout",
				"error", err, "world", w.Number)
		}
		return generateMinimal(w, snap)
	}
	return p
}

// generateScaled grows the path with task availability: a fuller backlog earns
// a longer world.
func generateScaled(w World, snap tasks.Snapshot) (Path, error) {
	total := minPathNodes + len(snap.Incomplete())/tasksPerPathLevel
	if total > maxPathNodes {
		total = maxPathNodes
	}
	p := buildLinearPath(w, snap, total)
	if err := validatePath(p); err != nil {
		return Path{}, err
	}
	return p, nil
}

func generateMinimal(w World, snap tasks.Snapshot) Path {
	return buildLinearPath(w, snap, minPathNodes)
}

func buildLinearPath(w World, snap tasks.Snapshot, total int) Path {
	if total < minPathNodes {
		total = minPathNodes
	}

	incomplete := snap.Incomplete()
	nextTask := 0

	nodes := make([]Node, 0, total)
	for i := 1; i <= total; i++ {
		key := positionKey(i)

		var node Node
		switch {
		case i == total:
			node = bossNode(w, snap, key)
		case i == total-1:
			node = miniBossNode(w, snap, key)
		default:
			var taken []tasks.Task
			taken, nextTask = takeTasks(incomplete, nextTask, 2)
			node = regularNode(w, key, i, taken)
		}

		if i < total {
			node.Connections = []string{positionKey(i + 1)}
		}
		nodes = append(nodes, node)
	}

	return Path{StartKey: positionKey(1), Nodes: nodes}
}

func positionKey(i int) string {
	return fmt.Sprintf("level_%d", i)
}

// takeTasks hands out up to max concrete tasks for a node, advancing the
// cursor so successive nodes bind distinct tasks.
func takeTasks(pool []tasks.Task, cursor, max int) ([]tasks.Task, int) {
	if cursor >= len(pool) {
		return nil, cursor
	}
	end := cursor + max
	if end > len(pool) {
		end = len(pool)
	}
	return pool[cursor:end], end
}

func regularNode(w World, key string, index int, bound []tasks.Task) Node {
	objectives := make([]Objective, 0, 2)
	for _, t := range bound {
		objectives = append(objectives, Objective{
			Type:        ObjectiveCompleteTask,
			Description: fmt.Sprintf("Complete %q", t.Title),
			TaskID:      t.ID,
		})
	}
	if len(objectives) == 0 {
		// Quantity fallback keeps the node completable with an empty backlog.
		objectives = append(objectives, Objective{
			Type:        ObjectiveDailyQuantity,
			Description: "Complete any task today",
			Count:       1,
		})
	}
	return Node{
		PositionKey: key,
		Type:        NodeRegular,
		RewardXP:    scaleXP(regularBaseXP+regularStepXP*(index-1), w.DifficultyModifier),
		Objectives:  objectives,
	}
}

func miniBossNode(w World, snap tasks.Snapshot, key string) Node {
	var objective Objective
	if len(snap.Tasks) < miniBossBaselineCount {
		objective = Objective{
			Type:        ObjectivePriorityClear,
			Description: "Clear every high-priority task",
			Priority:    tasks.PriorityHigh,
		}
	} else {
		count := scaleCount(miniBossBaselineCount, w.DifficultyModifier)
		objective = Objective{
			Type:        ObjectiveDailyQuantity,
			Description: fmt.Sprintf("Complete %d tasks today", count),
			Count:       count,
		}
	}
	return Node{
		PositionKey: key,
		Type:        NodeMiniBoss,
		RewardXP:    scaleXP(miniBossBaseXP, w.DifficultyModifier),
		Objectives:  []Objective{objective},
	}
}

func bossNode(w World, snap tasks.Snapshot, key string) Node {
	count := scaleCount(bossBaselineCount, w.DifficultyModifier)
	objectives := []Objective{{
		Type:        ObjectiveDailyQuantity,
		Description: fmt.Sprintf("Complete %d tasks today", count),
		Count:       count,
	}}
	if len(snap.Tasks) >= bossDiversityMinTasks {
		objectives = append(objectives, Objective{
			Type:          ObjectiveCategoryDiversity,
			Description:   fmt.Sprintf("Complete tasks from %d different lists today", bossDiversityCategories),
			CategoryCount: bossDiversityCategories,
		})
	} else {
		objectives = append(objectives, Objective{
			Type:        ObjectiveCompleteAllAvailable,
			Description: "Finish every remaining task",
		})
	}
	return Node{
		PositionKey: key,
		Type:        NodeBoss,
		RewardXP:    scaleXP(bossBaseXP, w.DifficultyModifier) + w.Boss.RewardXP,
		Objectives:  objectives,
	}
}

func scaleXP(base int, modifier float64) int {
	if modifier < 1.0 {
		modifier = 1.0
	}
	return int(math.Round(float64(base) * modifier))
}

func scaleCount(base int, modifier float64) int {
	if modifier < 1.0 {
		modifier = 1.0
	}
	count := int(math.Round(float64(base) * modifier))
	if count < base {
		count = base
	}
	return count
}

// validatePath enforces the graph invariants: exactly one boss, at most one
// mini-boss, every node reachable from the start, and the boss the unique
// terminal node.
func validatePath(p Path) error {
	if len(p.Nodes) < minPathNodes {
		return fmt.Errorf("path has %d nodes, want at least %d", len(p.Nodes), minPathNodes)
	}

	bosses := 0
	miniBosses := 0
	terminals := 0
	for _, n := range p.Nodes {
		switch n.Type {
		case NodeBoss:
			bosses++
		case NodeMiniBoss:
			miniBosses++
		}
		if len(n.Connections) == 0 {
			terminals++
			if n.Type != NodeBoss {
				return fmt.Errorf("terminal node %s is not the boss", n.PositionKey)
			}
		}
	}
	if bosses != 1 {
		return fmt.Errorf("path has %d boss nodes, want exactly 1", bosses)
	}
	if miniBosses > 1 {
		return fmt.Errorf("path has %d mini-boss nodes, want at most 1", miniBosses)
	}
	if terminals != 1 {
		return fmt.Errorf("path has %d terminal nodes, want exactly 1", terminals)
	}

	// Reachability from the start over the connection edges.
	reached := map[string]bool{p.StartKey: true}
	frontier := []string{p.StartKey}
	for len(frontier) > 0 {
		key := frontier[0]
		frontier = frontier[1:]
		n, ok := p.Node(key)
		if !ok {
			return fmt.Errorf("connection references unknown node %s", key)
		}
		for _, next := range n.Connections {
			if !reached[next] {
				reached[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	if len(reached) != len(p.Nodes) {
		return fmt.Errorf("only %d of %d nodes reachable from start", len(reached), len(p.Nodes))
	}
	return nil
}
