package remote

import "fmt"

// DataError is a remote document read/write failure. Stores surface it
// as a per-operation message; the local cache is never corrupted by one.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("remote data: %s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// StorageError is an image upload or delete failure in the blob store.
// Upload failures abort the enclosing operation before any document write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("remote storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
