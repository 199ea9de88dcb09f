// Package domain contains the core business entities of the task tracker:
// tasks, their status logs and the rules for validating and mutating them.
// It is independent of any storage or delivery mechanism.
package domain
