package data

import (
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/arena/internal/pool"
	"gopkg.in/yaml.v3"
)

// PoolEntry defines one pool category and the per-use defaults of its
// instances.
type PoolEntry struct {
	Category pool.Category
	Size     int           // instances pre-spawned on warm-up
	Speed    float32       // units per second, projectiles only
	Lifetime time.Duration // 0 = released manually
	Damage   int           // base damage, projectiles only
}

// PoolTable holds the category sets of every registry kind.
type PoolTable struct {
	byKind map[pool.Kind][]*PoolEntry
	byCat  map[pool.Kind]map[pool.Category]*PoolEntry
}

// NewPoolTable builds a table from entries already in memory.
func NewPoolTable(entries map[pool.Kind][]PoolEntry) *PoolTable {
	t := &PoolTable{
		byKind: make(map[pool.Kind][]*PoolEntry, len(entries)),
		byCat:  make(map[pool.Kind]map[pool.Category]*PoolEntry, len(entries)),
	}
	for kind, list := range entries {
		t.byCat[kind] = make(map[pool.Category]*PoolEntry, len(list))
		for i := range list {
			e := list[i]
			t.byKind[kind] = append(t.byKind[kind], &e)
			if _, dup := t.byCat[kind][e.Category]; !dup {
				t.byCat[kind][e.Category] = &e
			}
		}
	}
	return t
}

// Specs returns the registry category table of kind, in file order.
func (t *PoolTable) Specs(kind pool.Kind) []pool.CategorySpec {
	list := t.byKind[kind]
	specs := make([]pool.CategorySpec, 0, len(list))
	for _, e := range list {
		specs = append(specs, pool.CategorySpec{Name: e.Category, Size: e.Size})
	}
	return specs
}

// Get returns the entry of cat in kind, or nil if not found.
func (t *PoolTable) Get(kind pool.Kind, cat pool.Category) *PoolEntry {
	return t.byCat[kind][cat]
}

// Count returns the number of categories across all kinds.
func (t *PoolTable) Count() int {
	n := 0
	for _, list := range t.byKind {
		n += len(list)
	}
	return n
}

// --- YAML loading ---

type poolEntry struct {
	Category   string  `yaml:"category"`
	Size       int     `yaml:"size"`
	Speed      float32 `yaml:"speed"`
	LifetimeMs int     `yaml:"lifetime_ms"`
	Damage     int     `yaml:"damage"`
}

type poolListFile struct {
	Projectile []poolEntry `yaml:"projectile"`
	Arena      []poolEntry `yaml:"arena"`
	Effect     []poolEntry `yaml:"effect"`
}

// LoadPoolTable loads pool_list.yaml.
func LoadPoolTable(path string) (*PoolTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool list: %w", err)
	}
	var f poolListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse pool list: %w", err)
	}
	entries := make(map[pool.Kind][]PoolEntry, 3)
	for kind, list := range map[pool.Kind][]poolEntry{
		pool.KindProjectile: f.Projectile,
		pool.KindArena:      f.Arena,
		pool.KindEffect:     f.Effect,
	} {
		for i, e := range list {
			if e.Category == "" {
				return nil, fmt.Errorf("parse pool list: %s entry %d has no category", kind, i)
			}
			if e.Size < 0 || e.LifetimeMs < 0 {
				return nil, fmt.Errorf("parse pool list: %s/%s has a negative size or lifetime", kind, e.Category)
			}
			entries[kind] = append(entries[kind], PoolEntry{
				Category: pool.Category(e.Category),
				Size:     e.Size,
				Speed:    e.Speed,
				Lifetime: time.Duration(e.LifetimeMs) * time.Millisecond,
				Damage:   e.Damage,
			})
		}
	}
	return NewPoolTable(entries), nil
}
