//go:build baremetal

package transports

import (
	"errors"
	"fmt"
	"machine"
	"time"
)

// MCUTransport implements the scs Transport interface on a TinyGo UART.
type MCUTransport struct {
	uart *machine.UART
}

// SerialConfig holds configuration for opening a UART.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// OpenSerial gets a UART port with the given configuration.
func OpenSerial(cfg SerialConfig) (*MCUTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}

	var uart *machine.UART
	switch cfg.Port {
	case "0":
		uart = machine.UART0
	case "1":
		uart = machine.UART1
	default:
		return nil, fmt.Errorf("unknown UART %s", cfg.Port)
	}

	uart.SetBaudRate(uint32(cfg.BaudRate))

	return &MCUTransport{uart: uart}, nil
}

func (t *MCUTransport) Write(p []byte) (int, error) {
	return t.uart.Write(p)
}

func (t *MCUTransport) BytesAvailable() (int, error) {
	return t.uart.Buffered(), nil
}

func (t *MCUTransport) ReadExact(p []byte) error {
	read := 0
	for read < len(p) {
		n, err := t.uart.Read(p[read:])
		if err != nil {
			return err
		}
		read += n
	}
	return nil
}

func (t *MCUTransport) ClearInput() error {
	for t.uart.Buffered() > 0 {
		if _, err := t.uart.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}

func (t *MCUTransport) Close() error {
	return nil
}
