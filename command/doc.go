// Package command is the dispatch layer between a client's decoded wire
// requests and the broker's signal tree, authenticator, and subscription
// engine.
//
// Handle decodes one request, validates its shape against the matching
// action's JSON schema, dispatches to the right handler, and funnels every
// outcome — success or any *errors.CodedError — through a single envelope
// builder, so the wire-level {number, reason, message} shape is produced in
// exactly one place.
package command
