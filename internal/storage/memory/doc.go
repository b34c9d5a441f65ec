// Package memory provides in-process stores for development and tests. They
// follow the same upsert rules as the Postgres stores but keep nothing across
// restarts.
package memory
