package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/upb/jwt-auth-gateway/policy"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the YAML form of the route table:
//
//	bypass:
//	  - /api/login
//	routes:
//	  - pattern: /api/admin/**
//	    access: role:ADMIN
type PolicyFile struct {
	Bypass []string
	Rules  []policy.Rule
}

type policyFileYAML struct {
	Bypass []string `yaml:"bypass"`
	Routes []struct {
		Pattern string `yaml:"pattern"`
		Access  string `yaml:"access"`
	} `yaml:"routes"`
}

// LoadPolicyFile reads and validates a policy file
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	pf, err := ParsePolicyFile(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return pf, nil
}

// ParsePolicyFile parses the YAML policy document. Unknown keys are rejected.
func ParsePolicyFile(data []byte) (*PolicyFile, error) {
	var raw policyFileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	pf := &PolicyFile{Bypass: make([]string, 0, len(raw.Bypass))}
	for _, p := range raw.Bypass {
		if err := policy.ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("bypass %q: %w", p, err)
		}
		pf.Bypass = append(pf.Bypass, p)
	}

	for i, route := range raw.Routes {
		req, err := policy.ParseRequirement(route.Access)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		rule, err := policy.NewRule(route.Pattern, req)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		pf.Rules = append(pf.Rules, rule)
	}
	if len(pf.Rules) == 0 {
		return nil, fmt.Errorf("no routes defined")
	}

	return pf, nil
}
