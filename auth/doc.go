// Package auth verifies client tokens and resolves the permission set a
// channel authenticates with.
//
// Verify checks a JWT's RS256 signature against the currently installed
// public key, and Install lets that key be rotated at runtime. Permissions
// are read-write glob sets matched against dotted VSS paths, embedded in the
// token's kuksa-vss claim. For the kuksa-authorize action, ExchangeClient
// trades a client id and secret for a freshly issued token and the public
// key that verifies it over NATS request/reply.
package auth
