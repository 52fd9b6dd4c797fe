package scs

import "io"

// Transport is the interface for low-level communication with the servo bus.
// Any UART-like byte channel satisfies it; the transports package provides
// serial and mock implementations.
type Transport interface {
	io.WriteCloser

	// BytesAvailable reports how many received bytes are waiting to be read.
	BytesAvailable() (int, error)

	// ReadExact fills p completely with received bytes. Callers only ask for
	// bytes BytesAvailable has already reported.
	ReadExact(p []byte) error

	// ClearInput discards any buffered received bytes.
	ClearInput() error
}
