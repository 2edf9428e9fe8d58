package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 NEWSDRIVEN_AI_API_KEY 覆盖 ai.api_key。
const EnvPrefix = "NEWSDRIVEN"

// secretKeys 即使未出现在配置文件中也允许由环境变量提供。
var secretKeys = []string{
	"feed.api_key",
	"ai.api_key",
	"exchange.api_key",
	"exchange.api_secret",
	"notify.telegram.bot_token",
	"notify.telegram.chat_id",
	"store.records_dsn",
}

func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file.path, err)
		}
	}
	bindEnv(v)
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}
}

// configFile 是已读取的单个配置文件。
type configFile struct {
	path     string
	settings map[string]any
}

func mergeConfigFile(v *viper.Viper, file configFile) error {
	return v.MergeConfigMap(file.settings)
}

func readConfigFile(path string) (map[string]any, []string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, err
	}
	var includes []string
	if v.IsSet("include") {
		raw := v.Get("include")
		switch raw.(type) {
		case []any, []string, string:
			includes = v.GetStringSlice("include")
		default:
			return nil, nil, fmt.Errorf("include must be a string array")
		}
	}
	settings := v.AllSettings()
	delete(settings, "include")
	return settings, includes, nil
}

// includeResolver 深度优先展开 include，被包含的文件先于包含者合并，后合并者覆盖先合并者。
// include 项相对所在文件目录解析，支持 glob（按文件名排序）。
type includeResolver struct {
	seen  map[string]bool
	stack map[string]bool
	files []configFile
}

func resolveConfigIncludes(path string) ([]configFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r := &includeResolver{seen: map[string]bool{}, stack: map[string]bool{}}
	if err := r.walk(abs); err != nil {
		return nil, err
	}
	return r.files, nil
}

func (r *includeResolver) walk(path string) error {
	path = filepath.Clean(path)
	if r.stack[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if r.seen[path] {
		return nil
	}
	settings, includes, err := readConfigFile(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	r.stack[path] = true
	for _, inc := range includes {
		matches, err := r.expand(filepath.Dir(path), inc)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := r.walk(m); err != nil {
				return err
			}
		}
	}
	delete(r.stack, path)
	r.seen[path] = true
	r.files = append(r.files, configFile{path: path, settings: settings})
	return nil
}

func (r *includeResolver) expand(dir, inc string) ([]string, error) {
	inc = strings.TrimSpace(inc)
	if inc == "" {
		return nil, nil
	}
	if !filepath.IsAbs(inc) {
		inc = filepath.Join(dir, inc)
	}
	if !strings.ContainsAny(inc, "*?[") {
		return []string{inc}, nil
	}
	matches, err := filepath.Glob(inc)
	if err != nil {
		return nil, fmt.Errorf("bad include pattern %q: %w", inc, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// collectSettingsKeys 记录出现过的叶子键路径（小写、点分）。列表本身算作一个叶子。
func collectSettingsKeys(settings map[string]any, dest keySet) {
	for k, v := range settings {
		flattenConfigKeys(strings.ToLower(strings.TrimSpace(k)), v, dest)
	}
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	if prefix == "" {
		return
	}
	children, ok := node.(map[string]any)
	if !ok {
		dest.mark(prefix)
		return
	}
	for k, v := range children {
		if key := strings.ToLower(strings.TrimSpace(k)); key != "" {
			flattenConfigKeys(prefix+"."+key, v, dest)
		}
	}
}
