package signaltree

import "github.com/c360/vssbroker/vsspath"

// Datatype is a VSS leaf datatype string as it appears in the spec document
// (e.g. "uint8", "float", "boolean").
type Datatype string

const (
	DatatypeUint8   Datatype = "uint8"
	DatatypeUint16  Datatype = "uint16"
	DatatypeUint32  Datatype = "uint32"
	DatatypeUint64  Datatype = "uint64"
	DatatypeInt8    Datatype = "int8"
	DatatypeInt16   Datatype = "int16"
	DatatypeInt32   Datatype = "int32"
	DatatypeInt64   Datatype = "int64"
	DatatypeFloat   Datatype = "float"
	DatatypeDouble  Datatype = "double"
	DatatypeBoolean Datatype = "boolean"
	DatatypeString  Datatype = "string"
)

// LeafNode is a signal: a sensor, actuator, or attribute with a value.
type LeafNode struct {
	UUID        string
	Type        string // "sensor", "actuator", or "attribute"
	Datatype    Datatype
	Unit        string
	Description string
	Extra       map[string]any // metadata fields not in the VSS document schema, set via updateMetadata

	Value     any
	Timestamp int64
	HasValue  bool
}

// BranchNode is an interior node grouping children in declaration order.
type BranchNode struct {
	UUID        string
	Description string
	Extra       map[string]any

	order    []string
	children map[string]*Node
}

// Node is a discriminated union: exactly one of Branch or Leaf is set.
type Node struct {
	Branch *BranchNode
	Leaf   *LeafNode
}

// IsBranch implements vsspath.TreeNode.
func (n *Node) IsBranch() bool { return n.Branch != nil }

// ChildNames implements vsspath.TreeNode.
func (n *Node) ChildNames() []string {
	if n.Branch == nil {
		return nil
	}
	return n.Branch.order
}

// Child implements vsspath.TreeNode.
func (n *Node) Child(name string) (vsspath.TreeNode, bool) {
	if n.Branch == nil {
		return nil, false
	}
	c, ok := n.Branch.children[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// child returns the concrete *Node, for callers that need to mutate a leaf
// in place rather than go through the vsspath.TreeNode interface.
func (n *Node) child(name string) (*Node, bool) {
	if n.Branch == nil {
		return nil, false
	}
	c, ok := n.Branch.children[name]
	return c, ok
}

func (n *Node) clone() *Node {
	if n.Leaf != nil {
		leaf := *n.Leaf
		leaf.Extra = cloneExtra(n.Leaf.Extra)
		return &Node{Leaf: &leaf}
	}
	order := append([]string{}, n.Branch.order...)
	children := make(map[string]*Node, len(n.Branch.children))
	for k, v := range n.Branch.children {
		children[k] = v.clone()
	}
	return &Node{Branch: &BranchNode{
		UUID:        n.Branch.UUID,
		Description: n.Branch.Description,
		Extra:       cloneExtra(n.Branch.Extra),
		order:       order,
		children:    children,
	}}
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// toJSON renders the node and its full subtree as the generic document
// shape used in getMetadata responses.
func (n *Node) toJSON() map[string]any {
	if n.Leaf != nil {
		m := map[string]any{"type": n.Leaf.Type}
		if n.Leaf.Datatype != "" {
			m["datatype"] = string(n.Leaf.Datatype)
		}
		if n.Leaf.Unit != "" {
			m["unit"] = n.Leaf.Unit
		}
		if n.Leaf.Description != "" {
			m["description"] = n.Leaf.Description
		}
		if n.Leaf.UUID != "" {
			m["uuid"] = n.Leaf.UUID
		}
		for k, v := range n.Leaf.Extra {
			m[k] = v
		}
		if n.Leaf.HasValue {
			m["value"] = n.Leaf.Value
			m["timestamp"] = n.Leaf.Timestamp
		}
		return m
	}

	children := make(map[string]any, len(n.Branch.order))
	for _, name := range n.Branch.order {
		children[name] = n.Branch.children[name].toJSON()
	}
	m := map[string]any{"type": "branch", "children": children}
	if n.Branch.Description != "" {
		m["description"] = n.Branch.Description
	}
	if n.Branch.UUID != "" {
		m["uuid"] = n.Branch.UUID
	}
	for k, v := range n.Branch.Extra {
		m[k] = v
	}
	return m
}

// wrapChild renders n's own metadata (without descending further) with a
// children map containing only the named, already-rendered child. Used to
// build the root-to-node ancestor chain in getMetadata responses.
func (n *Node) wrapChild(name string, childJSON map[string]any) map[string]any {
	m := map[string]any{"type": "branch", "children": map[string]any{name: childJSON}}
	if n.Branch.Description != "" {
		m["description"] = n.Branch.Description
	}
	if n.Branch.UUID != "" {
		m["uuid"] = n.Branch.UUID
	}
	for k, v := range n.Branch.Extra {
		m[k] = v
	}
	return m
}

// knownMetadataFields are the keys applyMetadataPatch maps onto typed struct
// fields rather than stashing verbatim in Extra.
var knownMetadataFields = map[string]bool{
	"datatype": true, "unit": true, "description": true, "uuid": true,
	"type": true, "children": true, "value": true, "timestamp": true,
}

// applyMetadataPatch merges patch into n's metadata in place: recognized
// keys overwrite the corresponding typed field, everything else is kept
// verbatim in Extra so a round-trip getMetadata reflects exactly what was
// set, matching the permissive shape of an updateMetadata call.
func (n *Node) applyMetadataPatch(patch map[string]any) {
	if n.Leaf != nil {
		if v, ok := patch["datatype"].(string); ok {
			n.Leaf.Datatype = Datatype(v)
		}
		if v, ok := patch["unit"].(string); ok {
			n.Leaf.Unit = v
		}
		if v, ok := patch["description"].(string); ok {
			n.Leaf.Description = v
		}
		if v, ok := patch["uuid"].(string); ok {
			n.Leaf.UUID = v
		}
		if n.Leaf.Extra == nil {
			n.Leaf.Extra = make(map[string]any)
		}
		for k, v := range patch {
			if !knownMetadataFields[k] {
				n.Leaf.Extra[k] = v
			}
		}
		return
	}

	if v, ok := patch["description"].(string); ok {
		n.Branch.Description = v
	}
	if v, ok := patch["uuid"].(string); ok {
		n.Branch.UUID = v
	}
	if n.Branch.Extra == nil {
		n.Branch.Extra = make(map[string]any)
	}
	for k, v := range patch {
		if !knownMetadataFields[k] {
			n.Branch.Extra[k] = v
		}
	}
}
