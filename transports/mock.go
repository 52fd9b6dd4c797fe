package transports

import "io"

// MockTransport implements the scs Transport interface for testing.
type MockTransport struct {
	ReadData []byte
	Writes   [][]byte
	WriteErr error
	Cleared  int
	Closed   bool

	// ReplyFunc, when set, is called with each written frame; its return
	// value is queued as read data. This lets tests script request/reply
	// exchanges.
	ReplyFunc func(frame []byte) []byte
}

// WriteData returns all written bytes concatenated.
func (m *MockTransport) WriteData() []byte {
	var out []byte
	for _, w := range m.Writes {
		out = append(out, w...)
	}
	return out
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	m.Writes = append(m.Writes, frame)
	if m.ReplyFunc != nil {
		m.ReadData = append(m.ReadData, m.ReplyFunc(frame)...)
	}
	return len(p), nil
}

func (m *MockTransport) BytesAvailable() (int, error) {
	return len(m.ReadData), nil
}

func (m *MockTransport) ReadExact(p []byte) error {
	if len(m.ReadData) < len(p) {
		return io.ErrUnexpectedEOF
	}
	copy(p, m.ReadData)
	m.ReadData = m.ReadData[len(p):]
	return nil
}

func (m *MockTransport) ClearInput() error {
	m.Cleared++
	// Read data is preserved so tests can queue replies before the exchange.
	return nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}
