// Package tenant 提供了租户配置的加载与查询。
// 模板族、一致性检查开关与元数据属性都来自配置文件，
// 以显式对象注入流水线，不做模块级全局查表。
package tenant

import (
	"fmt"

	"github.com/spf13/viper"
)

// Attribute 描述租户可识别的一个元数据属性。
// Format 是该属性取值形态的说明（例如枚举 JSON），Prompt 是抽取指令。
type Attribute struct {
	Name   string `mapstructure:"name"`
	Format string `mapstructure:"format"`
	Prompt string `mapstructure:"prompt"`
}

// Config 是单个租户的完整配置记录。
type Config struct {
	ID               string      `mapstructure:"id"`
	Name             string      `mapstructure:"name"`
	TemplateFamily   string      `mapstructure:"template_family"`
	ConsistencyCheck bool        `mapstructure:"consistency_check"`
	Attributes       []Attribute `mapstructure:"attributes"`
}

// Registry 保存全部租户配置，未注册的租户回退到默认配置。
type Registry struct {
	tenants  map[string]Config
	defaults Config
}

// registryFile 对应 tenants.yaml 的文件结构。
type registryFile struct {
	Tenants  []Config `mapstructure:"tenants"`
	Defaults Config   `mapstructure:"defaults"`
}

// Load 从 YAML 文件加载租户注册表。
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取租户配置文件失败: %w", err)
	}

	var file registryFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("无法解析租户配置: %w", err)
	}

	return NewRegistry(file.Tenants, file.Defaults), nil
}

// NewRegistry 从显式的配置列表构造注册表（便于测试隔离）。
func NewRegistry(tenants []Config, defaults Config) *Registry {
	if defaults.TemplateFamily == "" {
		defaults.TemplateFamily = "default"
	}
	m := make(map[string]Config, len(tenants))
	for _, t := range tenants {
		if t.TemplateFamily == "" {
			t.TemplateFamily = defaults.TemplateFamily
		}
		m[t.ID] = t
	}
	return &Registry{tenants: m, defaults: defaults}
}

// Lookup 返回租户的配置；未注册的租户得到默认模板族且不带元数据属性。
func (r *Registry) Lookup(tenantID string) Config {
	if cfg, ok := r.tenants[tenantID]; ok {
		return cfg
	}
	cfg := r.defaults
	cfg.ID = tenantID
	return cfg
}
