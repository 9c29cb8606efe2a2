// Package config loads the declared state of a fleet: packages, gems, gem
// sources and DNS alias settings, with per-role additions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/melih-ucgun/fleetprov/internal/alias"
	"github.com/melih-ucgun/fleetprov/internal/consts"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/reconcile"
	"gopkg.in/yaml.v3"
)

// Role holds declarations added for instances carrying the role.
type Role struct {
	Packages   []PackageEntry `yaml:"packages" toml:"packages" validate:"dive"`
	Gems       []PackageEntry `yaml:"gems" toml:"gems" validate:"dive"`
	GemSources []string       `yaml:"gem_sources" toml:"gem_sources" validate:"dive,url"`
}

type Config struct {
	Domain     string                 `yaml:"domain" toml:"domain" validate:"required,fqdn"`
	Timezone   string                 `yaml:"timezone" toml:"timezone"`
	Sudo       *bool                  `yaml:"sudo" toml:"sudo"`
	Packages   []PackageEntry         `yaml:"packages" toml:"packages" validate:"dive"`
	Gems       []PackageEntry         `yaml:"gems" toml:"gems" validate:"dive"`
	GemSources []string               `yaml:"gem_sources" toml:"gem_sources" validate:"dive,url"`
	DNS        map[string]alias.Table `yaml:"dns" toml:"dns" validate:"dive"`
	Roles      map[string]Role        `yaml:"roles" toml:"roles" validate:"dive"`

	whens map[string]*vm.Program
}

// HostConfig is the declared state bound to one instance.
type HostConfig struct {
	Packages   []reconcile.PackageSpec
	Gems       []reconcile.PackageSpec
	GemSources []string
	Timezone   string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = consts.EnvFileName
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads a YAML or TOML config, chosen by file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish applies environment overrides, validates and compiles conditions.
func (c *Config) finish() error {
	c.applyEnv()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.compileWhens()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(consts.EnvPrefix + "DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv(consts.EnvPrefix + "TIMEZONE"); v != "" {
		c.Timezone = v
	}

	token := os.Getenv(consts.EnvPrefix + "CLOUDFLARE_TOKEN")
	fill := func(s alias.Settings) alias.Settings {
		s.Token = os.ExpandEnv(s.Token)
		if s.Kind == alias.KindCloudflare && s.Token == "" {
			s.Token = token
		}
		return s
	}
	for env, table := range c.DNS {
		table.Default = fill(table.Default)
		roles := make(map[string]alias.Settings, len(table.Roles))
		for role, s := range table.Roles {
			roles[role] = fill(s)
		}
		table.Roles = roles
		c.DNS[env] = table
	}
}

// whenEnv is the variable set available to when expressions.
func whenEnv(inst inventory.Instance, env string) map[string]any {
	roles := inst.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"host":      inst.Name,
		"full_name": inst.FullName,
		"roles":     roles,
		"env":       env,
	}
}

func (c *Config) compileWhens() error {
	c.whens = make(map[string]*vm.Program)
	check := func(entries []PackageEntry) error {
		for _, e := range entries {
			if e.When == "" {
				continue
			}
			if _, ok := c.whens[e.When]; ok {
				continue
			}
			program, err := expr.Compile(e.When, expr.Env(whenEnv(inventory.Instance{}, "")), expr.AsBool())
			if err != nil {
				return fmt.Errorf("invalid when %q for %s: %w", e.When, e.Name, err)
			}
			c.whens[e.When] = program
		}
		return nil
	}

	if err := check(c.Packages); err != nil {
		return err
	}
	if err := check(c.Gems); err != nil {
		return err
	}
	for _, role := range c.Roles {
		if err := check(role.Packages); err != nil {
			return err
		}
		if err := check(role.Gems); err != nil {
			return err
		}
	}
	return nil
}

// UseSudo reports whether privileged commands are elevated. Defaults to true.
func (c *Config) UseSudo() bool {
	return c.Sudo == nil || *c.Sudo
}

// Bind resolves the declarations for inst in env: the global lists followed
// by the lists of each of its roles, filtered by their when conditions.
func (c *Config) Bind(inst inventory.Instance, env string) (HostConfig, error) {
	vars := whenEnv(inst, env)
	hc := HostConfig{Timezone: c.Timezone}

	add := func(dst *[]reconcile.PackageSpec, entries []PackageEntry) error {
		for _, e := range entries {
			ok, err := c.eval(e.When, vars)
			if err != nil {
				return fmt.Errorf("%s: when %q: %w", e.Name, e.When, err)
			}
			if ok {
				*dst = append(*dst, reconcile.PackageSpec{Name: e.Name, Version: e.Version})
			}
		}
		return nil
	}

	if err := add(&hc.Packages, c.Packages); err != nil {
		return hc, err
	}
	if err := add(&hc.Gems, c.Gems); err != nil {
		return hc, err
	}
	hc.GemSources = append(hc.GemSources, c.GemSources...)

	for _, name := range inst.Roles {
		role, ok := c.Roles[name]
		if !ok {
			continue
		}
		if err := add(&hc.Packages, role.Packages); err != nil {
			return hc, err
		}
		if err := add(&hc.Gems, role.Gems); err != nil {
			return hc, err
		}
		hc.GemSources = append(hc.GemSources, role.GemSources...)
	}
	return hc, nil
}

func (c *Config) eval(when string, vars map[string]any) (bool, error) {
	if when == "" {
		return true, nil
	}
	program, ok := c.whens[when]
	if !ok {
		var err error
		program, err = expr.Compile(when, expr.Env(vars), expr.AsBool())
		if err != nil {
			return false, err
		}
	}
	out, err := expr.Run(program, vars)
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}
