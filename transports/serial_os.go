//go:build !baremetal

// Package transports provides byte-channel implementations for the scs bus
// driver: OS serial ports, microcontroller UARTs, and a mock for tests.
package transports

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// pollTimeout is the short read timeout used when pumping the receive
// buffer; it keeps BytesAvailable close to non-blocking.
const pollTimeout = time.Millisecond

// SerialTransport implements the scs Transport interface on a hardware
// serial port. go.bug.st/serial exposes no byte-count query, so received
// bytes are pumped into an internal buffer with short-timeout reads and
// availability is answered from that buffer.
type SerialTransport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	rxBuf    []byte
}

// SerialConfig holds configuration for opening a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// OpenSerial opens a serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &SerialTransport{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
	}, nil
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// BytesAvailable drains whatever the port has received into the internal
// buffer and reports the buffered count.
func (t *SerialTransport) BytesAvailable() (int, error) {
	if err := t.pump(); err != nil {
		return len(t.rxBuf), err
	}
	return len(t.rxBuf), nil
}

// ReadExact fills p from the internal buffer, topping it up from the port
// until the deadline if needed.
func (t *SerialTransport) ReadExact(p []byte) error {
	deadline := time.Now().Add(t.timeout)
	for len(t.rxBuf) < len(p) {
		if time.Now().After(deadline) {
			return io.ErrUnexpectedEOF
		}
		if err := t.pump(); err != nil {
			return err
		}
	}
	copy(p, t.rxBuf)
	t.rxBuf = t.rxBuf[len(p):]
	return nil
}

// ClearInput drops the internal buffer and resets the port's receive buffer.
func (t *SerialTransport) ClearInput() error {
	t.rxBuf = nil
	return t.port.ResetInputBuffer()
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// PortName returns the serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}

func (t *SerialTransport) pump() error {
	chunk := make([]byte, 256)
	n, err := t.port.Read(chunk)
	if n > 0 {
		t.rxBuf = append(t.rxBuf, chunk[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
