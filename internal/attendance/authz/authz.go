// Package authz decides which role, if any, a sender holds. Role membership
// is configuration, not code: policies load from a YAML file and plug into
// the dispatcher behind the Policy interface.
package authz

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is the authorization tier of a sender.
type Role int

const (
	// RoleNone marks an unrecognized sender. Messages from it are dropped
	// without a reply.
	RoleNone Role = iota
	// RoleScoped senders only see sessions they are authorized on.
	RoleScoped
	// RoleElevated senders see every session for a date.
	RoleElevated
)

// Policy reports the role a sender holds.
type Policy interface {
	RoleFor(userID string) Role
}

// StaticPolicy is a fixed membership policy. A user listed in both tiers is
// treated as elevated.
type StaticPolicy struct {
	Elevated []string `yaml:"elevated"`
	Scoped   []string `yaml:"scoped"`
}

// RoleFor implements Policy.
func (p StaticPolicy) RoleFor(userID string) Role {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return RoleNone
	}
	for _, id := range p.Elevated {
		if id == userID {
			return RoleElevated
		}
	}
	for _, id := range p.Scoped {
		if id == userID {
			return RoleScoped
		}
	}
	return RoleNone
}

// LoadPolicy reads a StaticPolicy from a YAML file with top-level
// "elevated" and "scoped" user id lists.
func LoadPolicy(path string) (StaticPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return StaticPolicy{}, fmt.Errorf("policy path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return StaticPolicy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(content)
}

// ParsePolicy decodes a StaticPolicy from YAML.
func ParsePolicy(content []byte) (StaticPolicy, error) {
	var policy StaticPolicy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return StaticPolicy{}, fmt.Errorf("parse policy yaml: %w", err)
	}
	for i, id := range policy.Elevated {
		policy.Elevated[i] = strings.TrimSpace(id)
	}
	for i, id := range policy.Scoped {
		policy.Scoped[i] = strings.TrimSpace(id)
	}
	return policy, nil
}
