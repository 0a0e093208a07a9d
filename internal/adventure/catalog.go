package adventure

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/apierr"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type BossDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	RewardXP    int    `json:"reward_xp" yaml:"reward_xp"`
}

// World is an immutable stage definition. Worlds unlock in number order.
type World struct {
	Number             int            `json:"number" yaml:"number"`
	Theme              string         `json:"theme" yaml:"theme"`
	DisplayName        string         `json:"display_name" yaml:"display_name"`
	Description        string         `json:"description" yaml:"description"`
	DifficultyModifier float64        `json:"difficulty_modifier" yaml:"difficulty_modifier"`
	Boss               BossDefinition `json:"boss" yaml:"boss"`
}

type Catalog struct {
	worlds []World
}

func defaultWorlds() []World {
	return []World{
		{1, "meadow", "Whispering Meadow", "Gentle plains where every journey begins.", 1.0,
			BossDefinition{"Sloth, Herald of Later", "Feeds on postponed plans.", 300}},
		{2, "forest", "Tanglewood", "A forest that grows denser with every unfinished errand.", 1.1,
			BossDefinition{"The Backlog Bramble", "A thicket of everything left for tomorrow.", 350}},
		{3, "desert", "Shifting Sands", "Dunes that bury half-done intentions.", 1.25,
			BossDefinition{"Mirage of Almost-Done", "Looks finished from a distance.", 400}},
		{4, "ocean", "Drowned Archive", "Sunken shelves of forgotten lists.", 1.4,
			BossDefinition{"The Overdue Leviathan", "Surfaces when due dates slip.", 475}},
		{5, "mountain", "Summit of Focus", "Thin air, fewer distractions.", 1.55,
			BossDefinition{"Avalanche of Everything", "All of it, at once.", 550}},
		{6, "volcano", "Crucible Caldera", "Where habits are forged or melted.", 1.7,
			BossDefinition{"Burnout, the Ember Tyrant", "Stronger when you sprint without rest.", 650}},
		{7, "tundra", "Still Expanse", "Silent ice that tests consistency.", 1.85,
			BossDefinition{"The Frozen Streak", "Shatters if a single day slips.", 750}},
		{8, "celestial", "Astral Crown", "The final ascent above the noise.", 2.0,
			BossDefinition{"Entropy Prime", "The end of every unfinished thing.", 900}},
	}
}

func NewCatalog() *Catalog {
	return &Catalog{worlds: defaultWorlds()}
}

type catalogFile struct {
	Worlds []World `yaml:"worlds"`
}

// LoadCatalog reads a YAML world table from path, falling back to the
// compiled-in defaults when the file is absent or invalid. The catalog must
// never be the reason the adventure layer is unavailable.
func LoadCatalog(path string, log *logger.Logger) *Catalog {
	if path == "" {
		return NewCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("World catalog file unreadable, using defaults", "path", path, "error", err)
		return NewCatalog()
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		log.Warn("World catalog file malformed, using defaults", "path", path, "error", err)
		return NewCatalog()
	}
	if err := validateWorlds(f.Worlds); err != nil {
		log.Warn("World catalog file invalid, using defaults", "path", path, "error", err)
		return NewCatalog()
	}
	log.Info("Loaded world catalog", "path", path, "worlds", len(f.Worlds))
	return &Catalog{worlds: f.Worlds}
}

func validateWorlds(worlds []World) error {
	if len(worlds) == 0 {
		return apierr.InvalidArgument("catalog has no worlds")
	}
	for i, w := range worlds {
		if w.Number != i+1 {
			return apierr.InvalidArgument("world at index %d has number %d, want %d", i, w.Number, i+1)
		}
		if w.DifficultyModifier < 1.0 {
			return apierr.InvalidArgument("world %d difficulty modifier %.2f below 1.0", w.Number, w.DifficultyModifier)
		}
		if w.Boss.Name == "" {
			return apierr.InvalidArgument("world %d has no boss", w.Number)
		}
	}
	return nil
}

func (c *Catalog) Count() int {
	return len(c.worlds)
}

func (c *Catalog) Worlds() []World {
	out := make([]World, len(c.worlds))
	copy(out, c.worlds)
	return out
}

func (c *Catalog) World(number int) (World, error) {
	if number < 1 || number > len(c.worlds) {
		return World{}, apierr.NotFound("world %d does not exist", number)
	}
	return c.worlds[number-1], nil
}

func (c *Catalog) BossDefinition(number int) (BossDefinition, error) {
	w, err := c.World(number)
	if err != nil {
		return BossDefinition{}, err
	}
	return w.Boss, nil
}

// ShouldUnlock reports whether worldNumber is open for a user given the
// progress row of the preceding world (nil when absent). World 1 is always
// open; every later world requires the previous one completed.
func (c *Catalog) ShouldUnlock(worldNumber int, previous *domain.UserWorldProgress) bool {
	if worldNumber == 1 {
		return true
	}
	return previous != nil && previous.WorldStatus == domain.WorldStatusCompleted
}
