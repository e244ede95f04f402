// Package redis is the shared durable store. Every command passes through a
// metrics hook and a circuit breaker hook.
package redis
