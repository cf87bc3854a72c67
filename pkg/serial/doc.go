// Package serial hosts the public surface for running dependency-ordered
// build graphs one task at a time. It exposes the `Executor` interface plus
// helpers (`Factory`, `Resolve`) so embedding programs can inject
// Dependencies once and obtain a runner, while unit tests can swap in fakes.
// This keeps the execution loop in `internal/executor` reusable without
// wiring duplication.
package serial
