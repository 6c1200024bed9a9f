package vsspath

import (
	"strings"

	"github.com/c360/vssbroker/errors"
)

// VSSPath is a parsed, structurally-validated path reference into a VSS tree.
// It has not yet been checked against any particular tree: Resolve and
// Leaves do that.
type VSSPath struct {
	// Dotted is the original dotted-form string, without the trailing
	// wildcard segment if Wildcard is set (e.g. "Vehicle.Acceleration" for
	// input "Vehicle.Acceleration.*").
	Dotted string

	// Segments are the dotted path's components, excluding the wildcard.
	Segments []string

	// Wildcard is true if the input ended in ".*". A bare "*" is rejected by
	// Parse.
	Wildcard bool
}

// Parse validates and parses a dotted-form VSS path. "*" is only accepted as
// a full, trailing segment.
func Parse(s string) (VSSPath, error) {
	if s == "" {
		return VSSPath{}, errors.InvalidPath("path cannot be empty")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return VSSPath{}, errors.InvalidPath("path cannot contain whitespace")
	}
	if strings.Contains(s, "..") {
		return VSSPath{}, errors.InvalidPath("path cannot contain consecutive dots")
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return VSSPath{}, errors.InvalidPath("path cannot start or end with a dot")
	}

	segments := strings.Split(s, ".")
	wildcard := false
	for i, seg := range segments {
		if seg == "" {
			return VSSPath{}, errors.InvalidPath("path segment cannot be empty")
		}
		if strings.Contains(seg, "*") {
			if seg != "*" {
				return VSSPath{}, errors.InvalidPath("'*' is only allowed as a full segment")
			}
			if i != len(segments)-1 {
				return VSSPath{}, errors.InvalidPath("'*' is only allowed as the trailing segment")
			}
			wildcard = true
		}
	}

	dotted := s
	if wildcard {
		segments = segments[:len(segments)-1]
		dotted = strings.Join(segments, ".")
		if dotted == "" {
			return VSSPath{}, errors.InvalidPath("wildcard must follow at least one segment")
		}
	}

	return VSSPath{Dotted: dotted, Segments: segments, Wildcard: wildcard}, nil
}

// TreeNode is the minimal shape vsspath needs to walk a VSS tree skeleton.
// signaltree.Node implements this; vsspath has no import-time dependency on
// signaltree.
type TreeNode interface {
	// IsBranch reports whether the node is an interior branch (true) or a
	// leaf signal (false).
	IsBranch() bool

	// ChildNames returns child names in spec-declaration order. Only
	// meaningful when IsBranch() is true.
	ChildNames() []string

	// Child returns the named child, if present. Only meaningful when
	// IsBranch() is true.
	Child(name string) (TreeNode, bool)
}

// Resolve walks p's segments from root, validating that every non-terminal
// segment is a branch, and returns the node the full path resolves to.
func Resolve(p VSSPath, root TreeNode) (TreeNode, error) {
	return resolve(root, p.Segments)
}

// resolve walks segments from root, validating that every non-terminal
// segment is a branch. It returns the node the full segment list resolves
// to.
func resolve(root TreeNode, segments []string) (TreeNode, error) {
	node := root
	for i, seg := range segments {
		if !node.IsBranch() {
			return nil, errors.InvalidPath("segment '" + seg + "' has no children; an interior path component must be a branch")
		}
		child, ok := node.Child(seg)
		if !ok {
			return nil, errors.PathNotFound("path segment '" + seg + "' does not exist")
		}
		node = child
		_ = i
	}
	return node, nil
}

// Leaves expands p into the concrete leaf paths it denotes, in
// spec-declaration order. A non-wildcard path that resolves to a leaf
// yields exactly that path; one that resolves to a branch yields every leaf
// descendant. A wildcard path requires the prefix to resolve to a branch.
func Leaves(p VSSPath, root TreeNode) ([]VSSPath, error) {
	node, err := resolve(root, p.Segments)
	if err != nil {
		return nil, err
	}

	if !node.IsBranch() {
		if p.Wildcard {
			return nil, errors.InvalidPath("'" + p.Dotted + "' is a leaf; wildcard requires a branch")
		}
		return []VSSPath{p}, nil
	}

	var out []VSSPath
	collectLeaves(node, p.Segments, &out)
	return out, nil
}

func collectLeaves(node TreeNode, prefix []string, out *[]VSSPath) {
	for _, name := range node.ChildNames() {
		child, ok := node.Child(name)
		if !ok {
			continue
		}
		segs := append(append([]string{}, prefix...), name)
		if child.IsBranch() {
			collectLeaves(child, segs, out)
			continue
		}
		*out = append(*out, VSSPath{
			Dotted:   strings.Join(segs, "."),
			Segments: segs,
		})
	}
}
