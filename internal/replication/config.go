package replication

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Config is the per-use configuration applied to an instance right after it
// is allocated. It travels with every forwarded allocation request, empty
// when the category needs none.
type Config struct {
	Shooter      string             `msgpack:"shooter,omitempty"`
	ShooterPeer  uint32             `msgpack:"shooter_peer,omitempty"`
	ShotByPlayer bool               `msgpack:"shot_by_player,omitempty"`
	Damage       int                `msgpack:"damage,omitempty"`
	Params       map[string]float64 `msgpack:"params,omitempty"`
}

// IsZero reports whether c carries no configuration.
func (c Config) IsZero() bool {
	return c.Shooter == "" && c.ShooterPeer == 0 && !c.ShotByPlayer && c.Damage == 0 && len(c.Params) == 0
}

// Param returns a named numeric parameter or def when absent.
func (c Config) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// MarshalConfig encodes c; an empty config encodes to an empty blob.
func MarshalConfig(c Config) ([]byte, error) {
	if c.IsZero() {
		return nil, nil
	}
	b, err := msgpack.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return b, nil
}

// UnmarshalConfig decodes a blob produced by MarshalConfig.
func UnmarshalConfig(b []byte) (Config, error) {
	var c Config
	if len(b) == 0 {
		return c, nil
	}
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
