// Package app provides the console runtime.
//
// Console wires one session manager, task store, notification sink and task
// orchestrator together. A hard reset throws the whole Console away and the
// next one recovers unfinished work from durable storage.
package app
