package signaltree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360/vssbroker/errors"
)

// rawNode mirrors a single VSS document node's scalar fields. Children are
// decoded separately so their declaration order can be recovered: a plain
// map[string]json.RawMessage loses key order, which Leaves' spec-declaration
// tie-break depends on.
type rawNode struct {
	Type        string          `json:"type"`
	Datatype    string          `json:"datatype,omitempty"`
	Description string          `json:"description,omitempty"`
	UUID        string          `json:"uuid,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Children    json.RawMessage `json:"children,omitempty"`
}

// Load decodes a VSS JSON document into a fresh tree rooted at a synthetic
// branch whose children are the document's top-level keys (normally just
// "Vehicle"). It does not mutate the store; call Store.Load to install it.
func Load(data []byte) (*Node, error) {
	root, err := buildChildren(data)
	if err != nil {
		return nil, errors.GenericError(fmt.Errorf("decode spec document: %w", err))
	}
	return &Node{Branch: root}, nil
}

func buildChildren(raw json.RawMessage) (*BranchNode, error) {
	order, err := orderedKeys(raw)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	children := make(map[string]*Node, len(order))
	for _, name := range order {
		child, err := buildNode(fields[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		children[name] = child
	}
	return &BranchNode{order: order, children: children}, nil
}

func buildNode(raw json.RawMessage) (*Node, error) {
	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, err
	}

	if rn.Type == "branch" {
		branch, err := buildChildren(rn.Children)
		if err != nil {
			return nil, err
		}
		branch.UUID = rn.UUID
		branch.Description = rn.Description
		return &Node{Branch: branch}, nil
	}

	return &Node{Leaf: &LeafNode{
		UUID:        rn.UUID,
		Type:        rn.Type,
		Datatype:    Datatype(rn.Datatype),
		Unit:        rn.Unit,
		Description: rn.Description,
	}}, nil
}

// orderedKeys returns an object's top-level keys in document order, since
// encoding/json's map decoding does not preserve it.
func orderedKeys(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipValue consumes exactly one JSON value from dec, whatever its shape.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil // primitive already consumed
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
