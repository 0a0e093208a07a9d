package adventure

import (
	"fmt"
	"testing"
	"time"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
)

func testWorld(number int, modifier float64) World {
	return World{
		Number:             number,
		Theme:              "meadow",
		DisplayName:        "Test World",
		DifficultyModifier: modifier,
		Boss:               BossDefinition{Name: "Test Boss", RewardXP: 300},
	}
}

func snapshotWithIncomplete(n int) tasks.Snapshot {
	snap := tasks.Snapshot{FetchedAt: time.Now()}
	for i := 0; i < n; i++ {
		snap.Tasks = append(snap.Tasks, tasks.Task{
			ID:    fmt.Sprintf("task-%d", i),
			Title: fmt.Sprintf("Task %d", i),
			List:  "inbox",
		})
	}
	return snap
}

func TestGenerateScalesWithBacklog(t *testing.T) {
	t.Parallel()
	w := testWorld(1, 1.0)

	cases := []struct {
		incomplete int
		wantNodes  int
	}{
		{0, 4},
		{2, 4},
		{3, 5},
		{12, 8},
		{100, 15},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%d incomplete", tc.incomplete), func(t *testing.T) {
			t.Parallel()
			p := Generate(w, snapshotWithIncomplete(tc.incomplete), nil)
			if len(p.Nodes) != tc.wantNodes {
				t.Fatalf("unexpected node count: got=%d want=%d", len(p.Nodes), tc.wantNodes)
			}
		})
	}
}

func TestGenerateGraphShape(t *testing.T) {
	t.Parallel()
	p := Generate(testWorld(3, 1.25), snapshotWithIncomplete(9), nil)

	if err := validatePath(p); err != nil {
		t.Fatalf("generated path failed validation: %v", err)
	}

	bosses := 0
	miniBosses := 0
	for _, n := range p.Nodes {
		switch n.Type {
		case NodeBoss:
			bosses++
		case NodeMiniBoss:
			miniBosses++
		}
		if len(n.Objectives) == 0 {
			t.Fatalf("node %s has no objectives", n.PositionKey)
		}
	}
	if bosses != 1 {
		t.Fatalf("unexpected boss count: got=%d want=1", bosses)
	}
	if miniBosses != 1 {
		t.Fatalf("unexpected mini-boss count: got=%d want=1", miniBosses)
	}

	last := p.Nodes[len(p.Nodes)-1]
	if last.Type != NodeBoss {
		t.Fatalf("terminal node is %s, want boss", last.Type)
	}
	if len(last.Connections) != 0 {
		t.Fatalf("boss node must be terminal, has connections %v", last.Connections)
	}
	if p.Nodes[len(p.Nodes)-2].Type != NodeMiniBoss {
		t.Fatalf("mini-boss must guard the boss")
	}
	if p.StartKey != p.Nodes[0].PositionKey {
		t.Fatalf("start key %s does not match first node %s", p.StartKey, p.Nodes[0].PositionKey)
	}
}

func TestGenerateEmptySnapshotIsCompletable(t *testing.T) {
	t.Parallel()
	p := Generate(testWorld(1, 1.0), tasks.Snapshot{}, nil)

	if len(p.Nodes) != minPathNodes {
		t.Fatalf("unexpected node count: got=%d want=%d", len(p.Nodes), minPathNodes)
	}
	// Regular nodes on an empty backlog must fall back to quantity
	// objectives, never dangle a reference to a task that does not exist.
	for _, n := range p.Nodes {
		for _, o := range n.Objectives {
			if o.Type == ObjectiveCompleteTask {
				t.Fatalf("node %s binds task %q against an empty snapshot", n.PositionKey, o.TaskID)
			}
		}
	}
}

func TestGenerateBindsConcreteTasks(t *testing.T) {
	t.Parallel()
	p := Generate(testWorld(1, 1.0), snapshotWithIncomplete(6), nil)

	bound := map[string]string{}
	for _, n := range p.Nodes {
		if n.Type != NodeRegular {
			continue
		}
		for _, o := range n.Objectives {
			if o.Type != ObjectiveCompleteTask {
				continue
			}
			if prev, ok := bound[o.TaskID]; ok {
				t.Fatalf("task %s bound to both %s and %s", o.TaskID, prev, n.PositionKey)
			}
			bound[o.TaskID] = n.PositionKey
		}
	}
	if len(bound) == 0 {
		t.Fatalf("expected regular nodes to bind tasks from the backlog")
	}
}

func TestGenerateDifficultyScalesRewards(t *testing.T) {
	t.Parallel()
	snap := snapshotWithIncomplete(6)
	easy := Generate(testWorld(1, 1.0), snap, nil)
	hard := Generate(testWorld(8, 2.0), snap, nil)

	easyBoss, _ := easy.NodeOfType(NodeBoss)
	hardBoss, _ := hard.NodeOfType(NodeBoss)
	if hardBoss.RewardXP <= easyBoss.RewardXP {
		t.Fatalf("expected harder world boss to pay more: easy=%d hard=%d", easyBoss.RewardXP, hardBoss.RewardXP)
	}

	hardCount := hardBoss.Objectives[0].Count
	easyCount := easyBoss.Objectives[0].Count
	if hardCount <= easyCount {
		t.Fatalf("expected harder world to ask for more completions: easy=%d hard=%d", easyCount, hardCount)
	}
}

func TestValidatePathRejectsBrokenGraphs(t *testing.T) {
	t.Parallel()

	t.Run("unreachable node", func(t *testing.T) {
		t.Parallel()
		p := Path{
			StartKey: "level_1",
			Nodes: []Node{
				{PositionKey: "level_1", Type: NodeRegular, Connections: []string{"level_2"}},
				{PositionKey: "level_2", Type: NodeRegular, Connections: []string{"level_4"}},
				{PositionKey: "level_3", Type: NodeMiniBoss},
				{PositionKey: "level_4", Type: NodeBoss},
			},
		}
		if err := validatePath(p); err == nil {
			t.Fatalf("expected unreachable node to be rejected")
		}
	})

	t.Run("two bosses", func(t *testing.T) {
		t.Parallel()
		p := Path{
			StartKey: "level_1",
			Nodes: []Node{
				{PositionKey: "level_1", Type: NodeRegular, Connections: []string{"level_2"}},
				{PositionKey: "level_2", Type: NodeRegular, Connections: []string{"level_3"}},
				{PositionKey: "level_3", Type: NodeBoss, Connections: []string{"level_4"}},
				{PositionKey: "level_4", Type: NodeBoss},
			},
		}
		if err := validatePath(p); err == nil {
			t.Fatalf("expected a second boss to be rejected")
		}
	})

	t.Run("non-boss terminal", func(t *testing.T) {
		t.Parallel()
		p := Path{
			StartKey: "level_1",
			Nodes: []Node{
				{PositionKey: "level_1", Type: NodeRegular, Connections: []string{"level_2"}},
				{PositionKey: "level_2", Type: NodeMiniBoss, Connections: []string{"level_3"}},
				{PositionKey: "level_3", Type: NodeBoss, Connections: []string{"level_4"}},
				{PositionKey: "level_4", Type: NodeRegular},
			},
		}
		if err := validatePath(p); err == nil {
			t.Fatalf("expected a regular terminal node to be rejected")
		}
	})
}
