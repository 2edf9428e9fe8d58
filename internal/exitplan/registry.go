package exitplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"newsdriven/internal/logger"
	"newsdriven/internal/strategy/exit"
	"newsdriven/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// schemeFileSchema 约束止盈方案文件的结构。
const schemeFileSchema = `{
  "type": "object",
  "required": ["schemes"],
  "properties": {
    "schemes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["tiers"],
        "properties": {
          "description": {"type": "string"},
          "stop_loss_pct": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
          "position_pct": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
          "tiers": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["threshold_pct", "close_fraction"],
              "properties": {
                "threshold_pct": {"type": "number", "exclusiveMinimum": 0},
                "close_fraction": {"type": "number", "exclusiveMinimum": 0, "maximum": 1}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledFileSchema = mustCompileSchema(schemeFileSchema)

// Scheme 是一个命名止盈方案，可选地覆盖止损与仓位比例。
type Scheme struct {
	ID          string                 `yaml:"-" json:"id"`
	Description string                 `yaml:"description" json:"description,omitempty"`
	StopLossPct float64                `yaml:"stop_loss_pct" json:"stop_loss_pct,omitempty"`
	PositionPct float64                `yaml:"position_pct" json:"position_pct,omitempty"`
	Tiers       []types.TakeProfitTier `yaml:"tiers" json:"tiers"`
}

// FileConfig 映射方案文件。
type FileConfig struct {
	Schemes map[string]Scheme `yaml:"schemes"`
}

// Snapshot 公开的方案快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Schemes  map[string]Scheme
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理命名止盈方案，文件变更时热加载；加载失败保留旧快照。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取方案文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("scheme registry requires path")
	}
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch 开始监听文件变化，变化后重新加载并通知监听者。
func (r *Registry) Watch() {
	if r == nil || r.v != nil {
		return
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		logger.Warnf("[exitplan] watch disabled: %v", err)
		return
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[exitplan] reload failed (%s): %v", evt.Name, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	r.v = v
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if r == nil || fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot 返回当前方案集。
func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Scheme 返回指定 ID 的方案，ID 不区分大小写。
func (r *Registry) Scheme(id string) (Scheme, bool) {
	if r == nil {
		return Scheme{}, false
	}
	id = normalizeID(id)
	if id == "" {
		return Scheme{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.snapshot.Schemes[id]
	if !ok {
		return Scheme{}, false
	}
	sc.Tiers = types.CloneTiers(sc.Tiers)
	return sc, true
}

// IDs 返回排序后的方案 ID。
func (r *Registry) IDs() []string {
	snap := r.Snapshot()
	out := make([]string, 0, len(snap.Schemes))
	for id := range snap.Schemes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) reload() error {
	cfg, err := readSchemeFile(r.path)
	if err != nil {
		return err
	}
	schemes := make(map[string]Scheme, len(cfg.Schemes))
	for name, sc := range cfg.Schemes {
		id := normalizeID(name)
		if id == "" {
			return fmt.Errorf("scheme with empty id")
		}
		if err := exit.ValidateTiers(sc.Tiers); err != nil {
			return fmt.Errorf("scheme %s: %w", id, err)
		}
		if !exit.FullyCloses(sc.Tiers) {
			logger.Debugf("[exitplan] scheme %s leaves a remainder after all tiers; it exits on stop-loss only", id)
		}
		sc.ID = id
		sc.Description = strings.TrimSpace(sc.Description)
		schemes[id] = sc
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Schemes:  schemes,
	}
	r.mu.Unlock()
	logger.Infof("[exitplan] loaded %d take-profit schemes from %s", len(schemes), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("exitplan listener")
			cb(snap)
		}(fn)
	}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Schemes:  make(map[string]Scheme, len(src.Schemes)),
	}
	for id, sc := range src.Schemes {
		sc.Tiers = types.CloneTiers(sc.Tiers)
		dst.Schemes[id] = sc
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("[exitplan] %s panic: %v", tag, r)
	}
}

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schemes.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("schemes.json")
}

func readSchemeFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read scheme file failed: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return FileConfig{}, fmt.Errorf("scheme file %s invalid: %w", filepath.Base(path), err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse scheme file failed: %w", err)
	}
	return cfg, nil
}

// validateDocument 将 YAML 转成 JSON 值后做 schema 校验。
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var value any
	if err := json.Unmarshal(buf, &value); err != nil {
		return err
	}
	return compiledFileSchema.Validate(value)
}
