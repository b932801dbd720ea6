package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// resourceFile is the YAML shape of a local knowledge seed file.
type resourceFile struct {
	Agent     string `yaml:"agent"`
	Knowledge []struct {
		Name    string `yaml:"name"`
		Content string `yaml:"content"`
		Type    string `yaml:"type"`
	} `yaml:"knowledge"`
}

// Local serves knowledge from YAML resource files with a per-agent in-memory
// overlay for mutations. The seed index is immutable after load; overlay
// changes are not persisted across restarts.
type Local struct {
	seed map[string]Knowledge // key: agent|name

	mu      sync.RWMutex
	overlay map[string]*Knowledge // key: tenant|agent|name; nil marks deletion
}

// NewLocal loads seed files (*.yaml, *.yml) from the given directories.
func NewLocal(dirs ...string) (*Local, error) {
	l := &Local{
		seed:    make(map[string]Knowledge),
		overlay: make(map[string]*Knowledge),
	}
	for _, dir := range dirs {
		if err := l.loadDir(dir); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Local) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read knowledge dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read knowledge file %s: %w", entry.Name(), err)
		}
		var file resourceFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return fmt.Errorf("parse knowledge file %s: %w", entry.Name(), err)
		}
		for _, k := range file.Knowledge {
			l.seed[seedKey(file.Agent, k.Name)] = Knowledge{
				Name:    k.Name,
				Content: k.Content,
				Type:    k.Type,
				Agent:   file.Agent,
			}
		}
	}
	return nil
}

func seedKey(agent, name string) string { return agent + "|" + name }

func overlayKey(tenant, agent, name string) string { return tenant + "|" + agent + "|" + name }

func (l *Local) Get(ctx context.Context, tenant, agent, name string) (*Knowledge, error) {
	l.mu.RLock()
	entry, overlaid := l.overlay[overlayKey(tenant, agent, name)]
	l.mu.RUnlock()
	if overlaid {
		if entry == nil {
			return nil, nil
		}
		out := *entry
		return &out, nil
	}
	if k, ok := l.seed[seedKey(agent, name)]; ok {
		k.TenantID = tenant
		return &k, nil
	}
	return nil, nil
}

func (l *Local) Update(ctx context.Context, k Knowledge) error {
	stored := k
	l.mu.Lock()
	l.overlay[overlayKey(k.TenantID, k.Agent, k.Name)] = &stored
	l.mu.Unlock()
	return nil
}

func (l *Local) Delete(ctx context.Context, tenant, agent, name string) (bool, error) {
	existing, err := l.Get(ctx, tenant, agent, name)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	l.overlay[overlayKey(tenant, agent, name)] = nil
	l.mu.Unlock()
	return existing != nil, nil
}

func (l *Local) List(ctx context.Context, tenant, agent string) ([]Knowledge, error) {
	seen := make(map[string]bool)
	var out []Knowledge

	l.mu.RLock()
	for key, entry := range l.overlay {
		if entry == nil {
			if t, a, name, ok := splitOverlayKey(key); ok && t == tenant && a == agent {
				seen[name] = true
			}
			continue
		}
		if entry.TenantID == tenant && entry.Agent == agent {
			out = append(out, *entry)
			seen[entry.Name] = true
		}
	}
	l.mu.RUnlock()

	for _, k := range l.seed {
		if k.Agent != agent || seen[k.Name] {
			continue
		}
		k.TenantID = tenant
		out = append(out, k)
	}
	return out, nil
}

func splitOverlayKey(key string) (tenant, agent, name string, ok bool) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
