package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for gameplay rules.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// Missing script directories are not an error: every rule has a built-in
// fallback.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// core helpers first, then rules that may use them
	for _, sub := range []string{"core", "rules"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DamageContext holds the inputs of a projectile damage calculation.
type DamageContext struct {
	Category     string
	Base         int
	Multiplier   float64
	ShotByPlayer bool
}

// CalcProjectileDamage calls the Lua calc_projectile_damage function.
// Without a script the damage is Base × Multiplier.
func (e *Engine) CalcProjectileDamage(ctx DamageContext) int {
	fallback := int(float64(ctx.Base) * ctx.Multiplier)
	fn := e.vm.GetGlobal("calc_projectile_damage")
	if fn == lua.LNil {
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("category", lua.LString(ctx.Category))
	t.RawSetString("base", lua.LNumber(ctx.Base))
	t.RawSetString("multiplier", lua.LNumber(ctx.Multiplier))
	t.RawSetString("shot_by_player", lua.LBool(ctx.ShotByPlayer))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_projectile_damage error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua calc_projectile_damage returned non-number")
		return fallback
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

// RollCrateDrop picks the power-up a broken crate leaves behind. The Lua
// roll_crate_drop function receives the choices as a 1-based array and
// returns one of them; anything else falls back to a uniform pick. Returns
// "" when choices is empty.
func (e *Engine) RollCrateDrop(choices []string) string {
	if len(choices) == 0 {
		return ""
	}
	fallback := func() string { return choices[rand.Intn(len(choices))] }

	fn := e.vm.GetGlobal("roll_crate_drop")
	if fn == lua.LNil {
		return fallback()
	}

	t := e.vm.NewTable()
	for _, c := range choices {
		t.Append(lua.LString(c))
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua roll_crate_drop error", zap.Error(err))
		return fallback()
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	picked := lua.LVAsString(result)
	for _, c := range choices {
		if c == picked {
			return c
		}
	}
	e.log.Warn("lua roll_crate_drop returned unknown choice", zap.String("choice", picked))
	return fallback()
}

// EffectDuration calls Lua effect_duration(category), which returns the
// lifetime of an effect in milliseconds or nil to keep def.
func (e *Engine) EffectDuration(category string, def time.Duration) time.Duration {
	fn := e.vm.GetGlobal("effect_duration")
	if fn == lua.LNil {
		return def
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(category)); err != nil {
		e.log.Error("lua effect_duration error", zap.Error(err), zap.String("category", category))
		return def
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok || n < 0 {
		return def
	}
	return time.Duration(float64(n) * float64(time.Millisecond))
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}
