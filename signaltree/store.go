package signaltree

import (
	"strings"
	"sync"
	"time"

	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/vsspath"
)

// PublishFunc is invoked once per leaf write, after the store's write lock
// has been released, so subscribers never block a writer and a writer never
// has to know anything about the subscription fan-out.
type PublishFunc func(uuid string, value any, timestamp int64)

// LeafValue is one resolved signal reading.
type LeafValue struct {
	Path      string
	UUID      string
	Value     any
	Timestamp int64
}

// GetResult is the outcome of a get, covering both the single-leaf and
// wildcard-expansion shapes.
type GetResult struct {
	Single  bool
	Values  []LeafValue
	Warning string
}

// Store is the in-memory VSS signal tree: a single RWMutex guarding a root
// Node, swappable wholesale by Load for hot-reload.
type Store struct {
	mu      sync.RWMutex
	root    *Node
	publish PublishFunc
}

// New creates an empty Store. publish may be nil, in which case writes are
// silently not fanned out (useful in tests exercising the tree alone).
func New(publish PublishFunc) *Store {
	return &Store{publish: publish}
}

// Load decodes data as a VSS JSON document and installs it as the store's
// tree, replacing whatever was loaded before. Safe to call again at runtime.
func (s *Store) Load(data []byte) error {
	root, err := Load(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
	return nil
}

// Root returns the current tree root for use with vsspath's Resolve/Leaves.
// Callers must hold no assumption about it remaining current across a
// concurrent Load.
func (s *Store) Root() vsspath.TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *Store) leafAt(segments []string) (*Node, error) {
	node := s.root
	for _, seg := range segments {
		if node.Branch == nil {
			return nil, errors.InvalidPath("segment '" + seg + "' has no children; an interior path component must be a branch")
		}
		child, ok := node.child(seg)
		if !ok {
			return nil, errors.PathNotFound("path segment '" + seg + "' does not exist")
		}
		node = child
	}
	return node, nil
}

// GetMetadata returns the spec subtree rooted at p, rewrapped so the caller
// sees the full chain from the tree root to p: every ancestor's children map
// contains only the traversed child, while p's own node is rendered in full.
// A path that does not resolve against the tree returns (nil, nil) rather
// than an error: getMetadata reports an unknown path as a null result, not
// a failure, unlike get/set/subscribe.
func (s *Store) GetMetadata(p vsspath.VSSPath) (map[string]any, error) {
	if p.Wildcard {
		return nil, errors.InvalidPath("getMetadata does not accept a wildcard path")
	}
	if len(p.Segments) == 0 {
		return nil, errors.InvalidPath("path cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := make([]*Node, 0, len(p.Segments))
	node := s.root
	for _, seg := range p.Segments {
		if node.Branch == nil {
			return nil, nil
		}
		child, ok := node.child(seg)
		if !ok {
			return nil, nil
		}
		chain = append(chain, child)
		node = child
	}

	built := chain[len(chain)-1].toJSON()
	for i := len(chain) - 2; i >= 0; i-- {
		built = chain[i].wrapChild(p.Segments[i+1], built)
	}
	return map[string]any{p.Segments[0]: built}, nil
}

// GetSignal reads one or more leaf values per p, filtering out leaves
// canRead rejects. A wildcard/branch path that resolves to zero readable
// leaves fails as NoPermission; one that resolves to a mix of readable and
// unreadable leaves succeeds with a Warning naming the denied paths.
func (s *Store) GetSignal(p vsspath.VSSPath, canRead func(path string) bool) (GetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leafPaths, err := vsspath.Leaves(p, s.root)
	if err != nil {
		return GetResult{}, err
	}

	var allowed []vsspath.VSSPath
	var denied []string
	for _, lp := range leafPaths {
		if canRead == nil || canRead(lp.Dotted) {
			allowed = append(allowed, lp)
		} else {
			denied = append(denied, lp.Dotted)
		}
	}
	if len(allowed) == 0 {
		return GetResult{}, errors.NoPermission("no read access to " + strings.Join(denied, ", "))
	}

	values := make([]LeafValue, 0, len(allowed))
	for _, lp := range allowed {
		node, err := s.leafAt(lp.Segments)
		if err != nil {
			return GetResult{}, err
		}
		values = append(values, LeafValue{
			Path:      lp.Dotted,
			UUID:      node.Leaf.UUID,
			Value:     node.Leaf.Value,
			Timestamp: node.Leaf.Timestamp,
		})
	}

	res := GetResult{Values: values, Single: !p.Wildcard && len(values) == 1}
	if len(denied) > 0 {
		res.Warning = "no read access to [" + strings.Join(denied, ", ") + "]"
	}
	return res, nil
}

// UpdateMetadata merges patch into the metadata of the node at p: recognized
// keys (datatype, unit, description, uuid) overwrite the corresponding typed
// field, and anything else is kept verbatim so a later getMetadata reflects
// exactly what was set. canModify gates the whole call, not per-path access,
// since tree-shape mutation is an all-or-nothing channel permission.
func (s *Store) UpdateMetadata(p vsspath.VSSPath, patch map[string]any, canModify bool) error {
	if !canModify {
		return errors.NoPermission("channel is not permitted to modify the signal tree")
	}
	if p.Wildcard {
		return errors.InvalidPath("updateMetadata does not accept a wildcard path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.leafAt(p.Segments)
	if err != nil {
		return err
	}
	node.applyMetadataPatch(patch)
	return nil
}

// SetSignal writes one or more leaf values per p. A non-wildcard path must
// resolve to a single leaf (setting a branch path fails deterministically,
// per invariant, rather than silently fanning out); a wildcard path must
// resolve to a branch, and value must be a JSON array of single-key objects
// each naming one leaf beneath it.
func (s *Store) SetSignal(p vsspath.VSSPath, value any, canWrite func(path string) bool) ([]LeafValue, error) {
	s.mu.Lock()

	var targets []vsspath.VSSPath
	var values []any

	node, err := s.leafAt(p.Segments)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if !p.Wildcard {
		if node.Branch != nil {
			s.mu.Unlock()
			return nil, errors.AmbiguousPath("set requires a single leaf path; '" + p.Dotted + "' is a branch")
		}
		targets = []vsspath.VSSPath{p}
		values = []any{value}
	} else {
		if node.Branch == nil {
			s.mu.Unlock()
			return nil, errors.InvalidPath("'" + p.Dotted + "' is a leaf; wildcard requires a branch")
		}
		arr, ok := value.([]any)
		if !ok {
			s.mu.Unlock()
			return nil, errors.SchemaError("wildcard set requires an array of single-key objects")
		}
		byName := make(map[string]any, len(arr))
		for _, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok || len(obj) != 1 {
				s.mu.Unlock()
				return nil, errors.SchemaError("each wildcard set entry must be an object naming exactly one leaf")
			}
			for k, v := range obj {
				byName[k] = v
			}
		}

		leafPaths, err := vsspath.Leaves(p, s.root)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		for _, lp := range leafPaths {
			name := lp.Segments[len(lp.Segments)-1]
			v, ok := byName[name]
			if !ok {
				continue
			}
			targets = append(targets, lp)
			values = append(values, v)
		}
	}

	var denied []string
	for _, lp := range targets {
		if canWrite != nil && !canWrite(lp.Dotted) {
			denied = append(denied, lp.Dotted)
		}
	}
	if len(denied) > 0 {
		s.mu.Unlock()
		return nil, errors.NoPermission("no write access to " + strings.Join(denied, ", "))
	}

	now := time.Now().Unix()
	results := make([]LeafValue, 0, len(targets))
	for i, lp := range targets {
		leaf, err := s.leafAt(lp.Segments)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if leaf.Leaf == nil {
			s.mu.Unlock()
			return nil, errors.InvalidPath("'" + lp.Dotted + "' is not a leaf")
		}
		coerced, err := coerce(leaf.Leaf.Datatype, lp.Dotted, values[i])
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		leaf.Leaf.Value = coerced
		leaf.Leaf.Timestamp = now
		leaf.Leaf.HasValue = true
		results = append(results, LeafValue{Path: lp.Dotted, UUID: leaf.Leaf.UUID, Value: coerced, Timestamp: now})
	}

	s.mu.Unlock()

	if s.publish != nil {
		for _, r := range results {
			s.publish(r.UUID, r.Value, r.Timestamp)
		}
	}

	return results, nil
}
