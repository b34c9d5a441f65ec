// Package store defines interfaces for persistence dependencies (the quote
// persister, the dashboard read model and crawl-run bookkeeping).
// Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store
