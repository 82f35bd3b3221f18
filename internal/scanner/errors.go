package scanner

import "fmt"

// ConnectionError is returned when the node cannot be reached or the tip height query fails.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("failed to connect to node: %v", e.Err)
	}
	return fmt.Sprintf("failed to connect to node %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a block cannot be retrieved during a scan.
type FetchError struct {
	Height uint64
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch block %d: %v", e.Height, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
