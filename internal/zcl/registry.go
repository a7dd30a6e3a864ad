package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the cluster definitions known to the hub. Drivers use it to
// look up attribute data types when building writes; logs and the API use it
// for names.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	logger   *slog.Logger
}

// NewRegistry creates a registry holding the given definitions.
func NewRegistry(logger *slog.Logger, defs ...ClusterDef) *Registry {
	r := &Registry{
		clusters: make(map[uint16]*ClusterDef),
		logger:   logger,
	}
	for _, d := range defs {
		r.Register(d)
	}
	return r
}

// Register adds a cluster definition to the registry, merging into an
// existing one with the same ID.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clusters[c.ID]; ok {
		existing.Merge(&c)
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "name", existing.Name)
		return
	}
	r.clusters[c.ID] = c.DeepCopy()
	r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
}

// Get returns a deep copy of a cluster definition, or nil if not found.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// Attribute returns the definition of one attribute.
func (r *Registry) Attribute(cluster, attr uint16) (AttributeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[cluster]
	if c == nil {
		return AttributeDef{}, false
	}
	a := c.FindAttribute(attr)
	if a == nil {
		return AttributeDef{}, false
	}
	return *a, true
}

// ClusterName returns the registered name or the hex id.
func (r *Registry) ClusterName(id uint16) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.clusters[id]; c != nil {
		return c.Name
	}
	return fmt.Sprintf("0x%04X", id)
}

// AttributeName returns "Cluster.Attribute" or hex ids for unknown entries.
func (r *Registry) AttributeName(cluster, attr uint16) string {
	if a, ok := r.Attribute(cluster, attr); ok {
		return r.ClusterName(cluster) + "." + a.Name
	}
	return fmt.Sprintf("%s.0x%04X", r.ClusterName(cluster), attr)
}

// All returns deep copies of all definitions ordered by cluster ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
