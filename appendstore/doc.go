// Package appendstore provides an append-only list of typed records
// stored as a single value under a fixed key in a key-value backend.
//
// Each Store is bound to one key. The only mutation is Append, which reads
// the current list, adds one record at the end and writes the whole list
// back. List returns the records in the order they were appended.
//
// # Store Structure
//
// A Store consists of:
//   - a key (e.g. "products") naming one collection in the backend
//   - a Backend with Get / Set by key
//   - a Codec that turns []T into bytes and back
//
// A key that was never written reads as an empty list.
//
// # Basic Usage
//
//	be := backend.NewMemory()
//	s, err := appendstore.New("products", be, appendstore.JSON[Product](), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = s.Append(ctx, Product{Title: "Laptop"})
//	products, err := s.List(ctx)
//
// # Errors
//
// Failures are reported by wrapping one of the sentinel errors, test them
// with errors.Is:
//   - ErrBackendUnavailable: backend read or write failed
//   - ErrStorageCapacityExceeded: encoded list is larger than allowed
//   - ErrDecodeFailure: stored value can't be decoded as []T
//   - ErrInvalidKey: key is empty or not accepted by the backend
//
// A failed Append never changes the stored list and is never retried.
//
// # Thread Safety
//
// Append and List on the same Store are serialized with a mutex. Nothing
// coordinates different Store values (or processes) writing the same key:
// the last write wins.
package appendstore
