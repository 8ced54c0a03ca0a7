package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/arena/internal/vmath"
	"gopkg.in/yaml.v3"
)

type spawnPoint struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

type spawnListFile struct {
	Crates []spawnPoint `yaml:"crates"`
}

// LoadSpawnPoints loads crate_spawn_list.yaml and returns the crate positions
// in file order.
func LoadSpawnPoints(path string) ([]vmath.Vec3, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crate spawn list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse crate spawn list: %w", err)
	}
	out := make([]vmath.Vec3, 0, len(f.Crates))
	for _, p := range f.Crates {
		out = append(out, vmath.Vec3{X: p.X, Y: p.Y, Z: p.Z})
	}
	return out, nil
}
