// Package mcu is the host side client of a gopper MCU: it retrieves the
// data dictionary, encodes commands from their dictionary formats and
// decodes the responses.
package mcu

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gopperh7/host/serial"
	"gopperh7/protocol"
)

// DefaultTimeout bounds each command and query.
const DefaultTimeout = 2 * time.Second

// identifyChunk keeps an identify_response inside one message block.
const identifyChunk = 40

// Formats every MCU knows before its dictionary is read.
var (
	identifyFormat, _         = ParseFormat(1, "identify offset=%u count=%c")
	identifyResponseFormat, _ = ParseFormat(0, "identify_response offset=%u data=%.*s")
)

// ErrShutdown is returned when the MCU reports it is shut down.
var ErrShutdown = errors.New("mcu is shut down")

// MCU is a connection to one microcontroller.
type MCU struct {
	transport *protocol.HostTransport
	timeout   time.Duration

	mu         sync.Mutex
	dict       *Dictionary
	onResponse func(*Response)
	shutdown   string
}

// Open opens the serial device and attaches to it.
func Open(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return Attach(port), nil
}

// Attach starts a client on an already open port.
func Attach(port io.ReadWriteCloser) *MCU {
	m := &MCU{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultTimeout,
	}
	m.transport.SetResponseHandler(m.handleResponse)
	return m
}

// SetTimeout sets the ack and query timeout.
func (m *MCU) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Close closes the port.
func (m *MCU) Close() error {
	return m.transport.Close()
}

// Dictionary returns the dictionary read by RetrieveDictionary.
func (m *MCU) Dictionary() *Dictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dict
}

// OnResponse sets a callback for every decoded response. It runs on the
// read goroutine.
func (m *MCU) OnResponse(fn func(*Response)) {
	m.mu.Lock()
	m.onResponse = fn
	m.mu.Unlock()
}

// ShutdownReason returns the last shutdown reason reported by the MCU.
func (m *MCU) ShutdownReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

func (m *MCU) handleResponse(id uint16, data *[]byte) error {
	r, err := m.decode(id, data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.dict != nil && (r.Name == "shutdown" || r.Name == "is_shutdown") {
		m.shutdown = m.dict.StaticString(r.Uint("static_string_id"))
	}
	fn := m.onResponse
	m.mu.Unlock()
	if fn != nil {
		fn(r)
	}
	return nil
}

// decode decodes one response whose id has been read from data.
func (m *MCU) decode(id uint16, data *[]byte) (*Response, error) {
	m.mu.Lock()
	dict := m.dict
	m.mu.Unlock()

	var f *Format
	if dict != nil {
		f, _ = dict.Response(id)
	} else if id == identifyResponseFormat.ID {
		f = identifyResponseFormat
	}
	if f == nil {
		return nil, errors.Errorf("unknown response id %d", id)
	}
	return f.Decode(data)
}

// RetrieveDictionary reads the dictionary in identify chunks.
func (m *MCU) RetrieveDictionary() (*Dictionary, error) {
	var data []byte
	for {
		offset := uint32(len(data))
		r, err := m.query(identifyFormat, map[string]interface{}{
			"offset": offset,
			"count":  identifyChunk,
		}, "identify_response", func(r *Response) bool {
			return r.Uint("offset") == offset
		})
		if err != nil {
			return nil, errors.Wrapf(err, "identify at offset %d", offset)
		}
		chunk := r.Bytes("data")
		data = append(data, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(data)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.dict = dict
	m.mu.Unlock()
	return dict, nil
}

func (m *MCU) command(name string) (*Format, error) {
	dict := m.Dictionary()
	if dict == nil {
		return nil, errors.New("dictionary not loaded")
	}
	f, ok := dict.Command(name)
	if !ok {
		return nil, errors.Errorf("unknown command %q", name)
	}
	return f, nil
}

// Send encodes a command from its dictionary format and waits for the ack.
func (m *MCU) Send(name string, args map[string]interface{}) error {
	f, err := m.command(name)
	if err != nil {
		return err
	}
	return m.send(f, args)
}

// SendFields parses console fields ("name p=v ...") and sends the command.
func (m *MCU) SendFields(fields []string) error {
	dict := m.Dictionary()
	if dict == nil {
		return errors.New("dictionary not loaded")
	}
	f, args, err := dict.ParseCommand(fields)
	if err != nil {
		return err
	}
	return m.send(f, args)
}

func (m *MCU) send(f *Format, args map[string]interface{}) error {
	out := protocol.NewScratchOutput()
	if err := f.Encode(out, args); err != nil {
		return err
	}
	payload := out.Result()
	err := m.transport.SendPayload(func(o protocol.OutputBuffer) {
		o.Output(payload)
	}, m.timeout)
	return errors.Wrap(err, f.Name)
}

// Query sends a command and returns the first reply response whose params
// match the command's oid, if both carry one.
func (m *MCU) Query(name string, args map[string]interface{}, reply string) (*Response, error) {
	f, err := m.command(name)
	if err != nil {
		return nil, err
	}
	oid, hasOID := args["oid"]
	return m.query(f, args, reply, func(r *Response) bool {
		if _, ok := r.Params["oid"]; !ok || !hasOID {
			return true
		}
		want, err := toUint32(oid)
		return err == nil && r.Uint("oid") == want
	})
}

func (m *MCU) query(f *Format, args map[string]interface{}, reply string, match func(*Response) bool) (*Response, error) {
	m.transport.DiscardResponses()
	if err := m.send(f, args); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.timeout)
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, errors.Errorf("%s: no %s response", f.Name, reply)
		}
		msg, err := m.transport.ReceiveResponse(wait)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: waiting for %s", f.Name, reply)
		}
		data := msg.Payload
		for len(data) > 0 {
			id, err := protocol.DecodeVLQUint(&data)
			if err != nil {
				break
			}
			r, err := m.decode(uint16(id), &data)
			if err != nil {
				break
			}
			if r.Name == "is_shutdown" {
				return nil, errors.Wrapf(ErrShutdown, "%s: %s", f.Name, m.ShutdownReason())
			}
			if r.Name == reply && match(r) {
				return r, nil
			}
		}
	}
}

// Clock returns the MCU's tick counter.
func (m *MCU) Clock() (uint32, error) {
	r, err := m.Query("get_clock", nil, "clock")
	if err != nil {
		return 0, err
	}
	return r.Uint("clock"), nil
}

// ConfigState is the reply to get_config.
type ConfigState struct {
	IsConfig   bool
	CRC        uint32
	IsShutdown bool
	MoveCount  uint32
}

// Config returns the MCU's configuration state.
func (m *MCU) Config() (ConfigState, error) {
	r, err := m.Query("get_config", nil, "config")
	if err != nil {
		return ConfigState{}, err
	}
	return ConfigState{
		IsConfig:   r.Uint("is_config") != 0,
		CRC:        r.Uint("crc"),
		IsShutdown: r.Uint("is_shutdown") != 0,
		MoveCount:  r.Uint("move_count"),
	}, nil
}
