package engine

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"TargetSentinel/internal/model"
)

// CatalogSource exposes the externally maintained acquirer catalog and
// target profiles. Read-only to the engine.
type CatalogSource interface {
	Acquirers() []model.AcquirerProfile
	Target(companyID string) (model.TargetProfile, bool)
}

// ConditionsProvider supplies the externally asserted special-condition
// flags for a company. The engine derives the runway-squeeze and
// acquirer-fit flags itself; the rest are upstream assertions.
type ConditionsProvider interface {
	Conditions(companyID string) model.SpecialConditions
}

// StaticConditions is a fixed in-memory ConditionsProvider.
type StaticConditions map[string]model.SpecialConditions

func (s StaticConditions) Conditions(companyID string) model.SpecialConditions {
	return s[companyID]
}

// FileCatalog loads acquirer and target profiles from YAML files once at
// startup.
type FileCatalog struct {
	mu        sync.RWMutex
	acquirers []model.AcquirerProfile
	targets   map[string]model.TargetProfile
}

type catalogFile struct {
	Acquirers []model.AcquirerProfile `yaml:"acquirers"`
	Targets   []model.TargetProfile   `yaml:"targets"`
}

// LoadFileCatalog reads the catalog files. Either path may be empty.
func LoadFileCatalog(acquirersPath, targetsPath string) (*FileCatalog, error) {
	c := &FileCatalog{targets: make(map[string]model.TargetProfile)}
	for _, path := range []string{acquirersPath, targetsPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		for _, acq := range file.Acquirers {
			if acq.ID == "" {
				return nil, fmt.Errorf("%w: acquirer with empty id in %s", model.ErrValidation, path)
			}
			c.acquirers = append(c.acquirers, acq)
		}
		for _, tgt := range file.Targets {
			if tgt.CompanyID == "" {
				return nil, fmt.Errorf("%w: target with empty company_id in %s", model.ErrValidation, path)
			}
			c.targets[tgt.CompanyID] = tgt
		}
	}
	return c, nil
}

func (c *FileCatalog) Acquirers() []model.AcquirerProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.AcquirerProfile, len(c.acquirers))
	copy(out, c.acquirers)
	return out
}

func (c *FileCatalog) Target(companyID string) (model.TargetProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tgt, ok := c.targets[companyID]
	return tgt, ok
}
