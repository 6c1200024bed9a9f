// Package vsspath parses and resolves VSS signal paths.
//
// A path arrives from a client in dotted form (Vehicle.Speed) or extended
// form with a trailing wildcard (Vehicle.Acceleration.*). Resolve walks a
// dotted path's segments against a tree skeleton, validating that every
// non-terminal segment is a branch; Leaves expands a wildcard (or a branch
// path) into the concrete leaf paths beneath it, in spec-declaration order.
package vsspath
