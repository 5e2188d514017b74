package access

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/reportal/model"
)

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
	Users map[string][]string `yaml:"users"`
}

// StaticPolicy grants offices from a YAML file mapping roles and subject ids
// to office names. The entry "*" grants every office.
type StaticPolicy struct {
	path   string
	mu     sync.RWMutex
	policy policyFile
}

// NewStaticPolicy creates a policy loaded from path. An empty path yields a
// policy that grants only the offices carried in the token.
func NewStaticPolicy(path string) (*StaticPolicy, error) {
	p := &StaticPolicy{path: path}
	if err := p.Sync(); err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveOffices returns the union of the offices granted to the subject,
// to each of its roles and carried in its token.
func (p *StaticPolicy) ResolveOffices(rctx *model.RequestContext) (model.OfficeSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	offices := model.NewOfficeSet(rctx.Offices...)
	for _, role := range rctx.Roles {
		for _, name := range p.policy.Roles[role] {
			offices.Add(name)
		}
	}
	for _, name := range p.policy.Users[rctx.SubjectID] {
		offices.Add(name)
	}
	return offices, nil
}

// Sync reloads the policy file from disk.
func (p *StaticPolicy) Sync() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("access: reading policy file %s: %w", p.path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("access: parsing policy file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.policy = pf
	p.mu.Unlock()

	return nil
}

// HealthCheck reports whether the policy file is still readable.
func (p *StaticPolicy) HealthCheck(_ context.Context) error {
	if p.path == "" {
		return nil
	}
	if _, err := os.Stat(p.path); err != nil {
		return fmt.Errorf("access: policy file: %w", err)
	}
	return nil
}
