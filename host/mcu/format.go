package mcu

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"gopperh7/protocol"
)

// Param is one "name=%type" field of a message format.
type Param struct {
	Name string
	Type string
}

// IsBytes reports whether the param is a length prefixed byte string.
func (p Param) IsBytes() bool {
	return p.Type == "%*s" || p.Type == "%.*s"
}

// IsSigned reports whether the param decodes as a signed integer.
func (p Param) IsSigned() bool {
	return p.Type == "%i" || p.Type == "%hi"
}

// mask returns the value mask of an integer type.
func (p Param) mask() uint32 {
	switch p.Type {
	case "%c":
		return 0xff
	case "%hu", "%hi":
		return 0xffff
	}
	return 0xffffffff
}

// Format is a command or response from the data dictionary.
type Format struct {
	ID     uint16
	Name   string
	Params []Param
	Text   string
}

// ParseFormat splits a dictionary entry such as
// "spi_transfer oid=%c data=%*s".
func ParseFormat(id uint16, text string) (*Format, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, errors.Errorf("empty format for id %d", id)
	}
	f := &Format{ID: id, Name: fields[0], Text: text}
	for _, field := range fields[1:] {
		name, typ, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("%s: malformed parameter %q", f.Name, field)
		}
		switch typ {
		case "%u", "%i", "%hu", "%hi", "%c", "%*s", "%.*s":
		default:
			return nil, errors.Errorf("%s: unknown type %q", f.Name, typ)
		}
		f.Params = append(f.Params, Param{Name: name, Type: typ})
	}
	return f, nil
}

// Encode writes the command id and args in format order. Integer params
// accept any Go integer type; byte params accept []byte or string.
func (f *Format) Encode(out protocol.OutputBuffer, args map[string]interface{}) error {
	for name := range args {
		if _, ok := f.param(name); !ok {
			return errors.Errorf("%s: unknown parameter %q", f.Name, name)
		}
	}
	protocol.EncodeVLQUint(out, uint32(f.ID))
	for _, p := range f.Params {
		v, ok := args[p.Name]
		if !ok {
			return errors.Errorf("%s: missing parameter %q", f.Name, p.Name)
		}
		if p.IsBytes() {
			switch b := v.(type) {
			case []byte:
				protocol.EncodeVLQBytes(out, b)
			case string:
				protocol.EncodeVLQString(out, b)
			default:
				return errors.Errorf("%s: %s wants bytes, got %T", f.Name, p.Name, v)
			}
			continue
		}
		n, err := toUint32(v)
		if err != nil {
			return errors.Wrapf(err, "%s: %s", f.Name, p.Name)
		}
		protocol.EncodeVLQUint(out, n)
	}
	return nil
}

func toUint32(v interface{}) (uint32, error) {
	switch n := v.(type) {
	case uint8:
		return uint32(n), nil
	case uint16:
		return uint32(n), nil
	case uint32:
		return n, nil
	case uint64:
		return uint32(n), nil
	case uint:
		return uint32(n), nil
	case int:
		return uint32(n), nil
	case int32:
		return uint32(n), nil
	case int64:
		return uint32(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("want integer, got %T", v)
}

// Response is a decoded message. Integer params are uint32, or int32 for
// signed types; byte params are []byte.
type Response struct {
	*Format
	Params map[string]interface{}
}

// Uint returns an integer param.
func (r *Response) Uint(name string) uint32 {
	switch v := r.Params[name].(type) {
	case uint32:
		return v
	case int32:
		return uint32(v)
	}
	return 0
}

// Bytes returns a byte string param.
func (r *Response) Bytes(name string) []byte {
	b, _ := r.Params[name].([]byte)
	return b
}

// String renders the response as "name a=1 b=0102".
func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(r.Format.Name)
	for _, p := range r.Format.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		switch v := r.Params[p.Name].(type) {
		case []byte:
			if p.Type == "%.*s" && isPrintable(v) {
				sb.WriteString(strconv.Quote(string(v)))
			} else {
				sb.WriteString(hex.EncodeToString(v))
			}
		default:
			fmt.Fprint(&sb, v)
		}
	}
	return sb.String()
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Decode reads the params of f from data, which starts after the id.
func (f *Format) Decode(data *[]byte) (*Response, error) {
	r := &Response{Format: f, Params: make(map[string]interface{}, len(f.Params))}
	for _, p := range f.Params {
		if p.IsBytes() {
			b, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: %s", f.Name, p.Name)
			}
			r.Params[p.Name] = append([]byte(nil), b...)
			continue
		}
		v, err := protocol.DecodeVLQInt(data)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", f.Name, p.Name)
		}
		if p.IsSigned() {
			r.Params[p.Name] = v
		} else {
			r.Params[p.Name] = uint32(v) & p.mask()
		}
	}
	return r, nil
}
