package adventure

// ObjectiveType enumerates the conditions a node can require over real task
// activity.
type ObjectiveType string

const (
	ObjectiveCompleteTask         ObjectiveType = "complete_task"
	ObjectiveDailyQuantity        ObjectiveType = "daily_quantity"
	ObjectivePriorityClear        ObjectiveType = "priority_clear"
	ObjectiveCategoryDiversity    ObjectiveType = "category_diversity"
	ObjectiveCompleteAllAvailable ObjectiveType = "complete_all_available"
)

// Objective is a stateless specification; satisfaction is computed on demand
// against a task snapshot, never cached.
type Objective struct {
	Type          ObjectiveType `json:"type"`
	Description   string        `json:"description"`
	TaskID        string        `json:"task_id,omitempty"`
	Count         int           `json:"count,omitempty"`
	Priority      string        `json:"priority,omitempty"`
	CategoryCount int           `json:"category_count,omitempty"`
}

type NodeType string

const (
	NodeRegular  NodeType = "regular"
	NodeMiniBoss NodeType = "mini_boss"
	NodeBoss     NodeType = "boss"
)

// NodeStatus is derived from the completion set, never stored per node.
type NodeStatus string

const (
	NodeLocked    NodeStatus = "locked"
	NodeUnlocked  NodeStatus = "unlocked"
	NodeCompleted NodeStatus = "completed"
)

type Node struct {
	PositionKey string      `json:"position_key"`
	Type        NodeType    `json:"type"`
	RewardXP    int         `json:"reward_xp"`
	Connections []string    `json:"connections"`
	Objectives  []Objective `json:"objectives"`
}

// Path is the generated node graph for one (user, world) pair.
type Path struct {
	StartKey string `json:"start_key"`
	Nodes    []Node `json:"nodes"`
}

func (p Path) Node(positionKey string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.PositionKey == positionKey {
			return n, true
		}
	}
	return Node{}, false
}

func (p Path) NodeOfType(t NodeType) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Type == t {
			return n, true
		}
	}
	return Node{}, false
}

// Predecessors maps each position key to the keys that connect into it.
func (p Path) Predecessors() map[string][]string {
	preds := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		for _, next := range n.Connections {
			preds[next] = append(preds[next], n.PositionKey)
		}
	}
	return preds
}
