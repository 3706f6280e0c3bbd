package media

import "github.com/pkg/errors"

var (
	// ErrSourceOpen is returned when a source cannot be opened or parsed as a container.
	ErrSourceOpen = errors.New("source cannot be opened")
	// ErrSourceFormat is returned when a declared track's format cannot be read.
	ErrSourceFormat = errors.New("track format cannot be read")
	// ErrWriterState is returned when a writer is used out of protocol order.
	ErrWriterState = errors.New("writer used in wrong state")
	// ErrSampleTooLarge is returned when a sample does not fit the transfer buffer.
	ErrSampleTooLarge = errors.New("sample exceeds transfer buffer")
)
