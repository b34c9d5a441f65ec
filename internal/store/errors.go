package store

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RowError describes one row the persister could not write. The rest of the
// batch is unaffected.
type RowError struct {
	// Table is the destination table (authors, quotes, tags, quote_tags).
	Table string `json:"table"`
	// Key identifies the row, e.g. the quote text or "name surname".
	Key string `json:"key"`
	Err error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %q: %v", e.Table, e.Key, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// StorageConnectionError reports a failure that aborted the whole persist
// transaction. Nothing from the batch was committed.
type StorageConnectionError struct {
	Op  string
	Err error
}

func (e *StorageConnectionError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageConnectionError) Unwrap() error {
	return e.Err
}
