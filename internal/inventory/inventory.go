// Package inventory reads the list of managed instances. The inventory is
// loaded once and passed explicitly to every consumer.
package inventory

import (
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Connection kinds.
const (
	ConnectionSSH   = "ssh"
	ConnectionLocal = "local"
)

// Instance is one managed machine.
type Instance struct {
	Name         string   `yaml:"name" validate:"required,hostname_rfc1123"`
	FullName     string   `yaml:"full_name" validate:"omitempty,fqdn"`
	ExternalHost string   `yaml:"external_host"`
	InternalHost string   `yaml:"internal_host"`
	ExternalIP   string   `yaml:"external_ip" validate:"omitempty,ip"`
	InternalIP   string   `yaml:"internal_ip" validate:"omitempty,ip"`
	Roles        []string `yaml:"roles"`

	// Connection settings.
	Connection     string `yaml:"connection" validate:"omitempty,oneof=ssh local"`
	Address        string `yaml:"address"`
	User           string `yaml:"user"`
	Port           int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	KeyPath        string `yaml:"key_path"`
	BecomePassword string `yaml:"become_password"`
}

// HasRole reports whether the instance carries role.
func (i Instance) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Addr returns the address used to reach the instance.
func (i Instance) Addr() string {
	switch {
	case i.Address != "":
		return i.Address
	case i.ExternalHost != "":
		return i.ExternalHost
	case i.ExternalIP != "":
		return i.ExternalIP
	}
	return i.FullName
}

// Inventory is the set of managed instances of one environment.
type Inventory struct {
	Domain    string     `yaml:"domain"`
	Instances []Instance `yaml:"instances" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates an inventory file. Instances without a full name
// get name.domain.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates inventory YAML.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	inv.fillDefaults()
	if err := validate.Struct(&inv); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}

	seen := make(map[string]struct{}, len(inv.Instances))
	for _, inst := range inv.Instances {
		if _, dup := seen[inst.Name]; dup {
			return nil, fmt.Errorf("invalid inventory: duplicate instance %q", inst.Name)
		}
		seen[inst.Name] = struct{}{}
	}
	return &inv, nil
}

func (inv *Inventory) fillDefaults() {
	for i := range inv.Instances {
		inst := &inv.Instances[i]
		if inst.FullName == "" && inv.Domain != "" {
			inst.FullName = inst.Name + "." + inv.Domain
		}
		if inst.Connection == "" {
			inst.Connection = ConnectionSSH
		}
		if inst.Port == 0 {
			inst.Port = 22
		}
	}
}

// Select returns the instances matching any of names or roles. With no
// filter, every instance is returned.
func (inv *Inventory) Select(names, roles []string) []Instance {
	if len(names) == 0 && len(roles) == 0 {
		return slices.Clone(inv.Instances)
	}
	var out []Instance
	for _, inst := range inv.Instances {
		if slices.Contains(names, inst.Name) || slices.ContainsFunc(roles, inst.HasRole) {
			out = append(out, inst)
		}
	}
	return out
}

// Find returns the instance called name.
func (inv *Inventory) Find(name string) (Instance, bool) {
	for _, inst := range inv.Instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}
