// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (session.go, task.go, outcome.go, notification.go, etc.)
// with shared types and cross-cutting interfaces. No implementation code beyond small pure helpers.
// Keeps interfaces on the consumer side so adapters and services never import each other.
package domain
