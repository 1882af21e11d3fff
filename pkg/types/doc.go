// Package types defines the Store interfaces, entity types, relationship
// vocabulary, symbol identifier taxonomy, and standard error types for the
// symbol graph store.
//
// The package is pure: nothing here touches storage. Backends in
// internal/sqlite implement the interfaces declared in store.go.
package types
