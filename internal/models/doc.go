// Package models defines domain entities and persistence interfaces for the songzip download service.
//
// The package contains two categories of types:
//
// 1. Value types: lightweight structs passed between the resolver, fetcher and job controller
//   - [Song] : A (title, primary artist) pair to search for
//   - [Job] : Immutable snapshot of a job's progress, safe to hand to any number of readers
//   - [ItemResult] : Typed outcome of one fetch with a [Reason]
//   - [Report] : All item results of a job, in order
//
// 2. Persistent entities: database-backed job history
//   - [JobRecord] : A job's final (or last known) state plus its item results
//
// [Status] models the job lifecycle: idle → downloading → done | error.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
