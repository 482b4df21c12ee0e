package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dictionary is the data dictionary served by the identify command.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`

	commands  map[string]*Format
	responses map[uint16]*Format
	raw       []byte
}

// ParseDictionary decodes a dictionary, inflating it first when it carries
// a zlib header.
func ParseDictionary(data []byte) (*Dictionary, error) {
	raw, err := inflate(data)
	if err != nil {
		return nil, err
	}
	d := &Dictionary{raw: raw}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, errors.Wrap(err, "parse dictionary")
	}
	if err := d.index(); err != nil {
		return nil, err
	}
	return d, nil
}

func inflate(data []byte) ([]byte, error) {
	// zlib: CM=8 and the header is a multiple of 31.
	if len(data) < 2 || data[0]&0x0f != 8 || (uint16(data[0])<<8|uint16(data[1]))%31 != 0 {
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "inflate dictionary")
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "inflate dictionary")
	}
	return raw, nil
}

func (d *Dictionary) index() error {
	d.commands = make(map[string]*Format, len(d.Commands))
	d.responses = make(map[uint16]*Format, len(d.Responses))
	for text, id := range d.Commands {
		f, err := ParseFormat(uint16(id), text)
		if err != nil {
			return err
		}
		d.commands[f.Name] = f
	}
	for text, id := range d.Responses {
		f, err := ParseFormat(uint16(id), text)
		if err != nil {
			return err
		}
		d.responses[f.ID] = f
	}
	return nil
}

// JSON returns the uncompressed dictionary text.
func (d *Dictionary) JSON() []byte {
	return d.raw
}

// Command returns the format of a command by name.
func (d *Dictionary) Command(name string) (*Format, bool) {
	f, ok := d.commands[name]
	return f, ok
}

// Response returns the format of a response by id.
func (d *Dictionary) Response(id uint16) (*Format, bool) {
	f, ok := d.responses[id]
	return f, ok
}

// CommandNames returns the command names in id order.
func (d *Dictionary) CommandNames() []string {
	formats := make([]*Format, 0, len(d.commands))
	for _, f := range d.commands {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i].ID < formats[j].ID })
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}
	return names
}

// Constant returns a config constant.
func (d *Dictionary) Constant(name string) (string, bool) {
	v, ok := d.Config[name]
	return v, ok
}

// ConstantInt returns a numeric config constant.
func (d *Dictionary) ConstantInt(name string) (int64, error) {
	v, ok := d.Config[name]
	if !ok {
		return 0, errors.Errorf("constant %s not in dictionary", name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, errors.Wrapf(err, "constant %s", name)
}

// Enum returns the value of name in enumeration enum.
func (d *Dictionary) Enum(enum, name string) (uint32, error) {
	values, ok := d.Enumerations[enum]
	if !ok {
		return 0, errors.Errorf("enumeration %s not in dictionary", enum)
	}
	v, ok := values[name]
	if !ok {
		return 0, errors.Errorf("unknown %s %q", enum, name)
	}
	return uint32(v), nil
}

// EnumName is the inverse of Enum.
func (d *Dictionary) EnumName(enum string, value uint32) (string, bool) {
	for name, v := range d.Enumerations[enum] {
		if uint32(v) == value {
			return name, true
		}
	}
	return "", false
}

// LookupPin resolves a pin name such as "PA5" or "pa5".
func (d *Dictionary) LookupPin(name string) (uint32, error) {
	return d.Enum("pin", strings.ToUpper(name))
}

// Pins returns the pin names in id order.
func (d *Dictionary) Pins() []string {
	values := d.Enumerations["pin"]
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return values[names[i]] < values[names[j]] })
	return names
}

// StaticString returns the message of a static_string_id.
func (d *Dictionary) StaticString(id uint32) string {
	if s, ok := d.EnumName("static_string_id", id); ok {
		return s
	}
	return "static string " + strconv.FormatUint(uint64(id), 10)
}

// enumFor returns the enumeration that applies to a param: one named like
// the param, or "pin" for *_pin params.
func (d *Dictionary) enumFor(p Param) (string, bool) {
	if _, ok := d.Enumerations[p.Name]; ok {
		return p.Name, true
	}
	if p.Name == "pin" || strings.HasSuffix(p.Name, "_pin") {
		_, ok := d.Enumerations["pin"]
		return "pin", ok
	}
	return "", false
}

// ParseCommand parses console input of the form
// "name param=value ...". Integers take any strconv base prefix, %*s
// params take hex, %.*s params take text and enumerated params take
// their names.
func (d *Dictionary) ParseCommand(fields []string) (*Format, map[string]interface{}, error) {
	if len(fields) == 0 {
		return nil, nil, errors.New("empty command")
	}
	f, ok := d.Command(fields[0])
	if !ok {
		return nil, nil, errors.Errorf("unknown command %q", fields[0])
	}
	args := make(map[string]interface{}, len(fields)-1)
	for _, field := range fields[1:] {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, nil, errors.Errorf("%s: expected name=value, got %q", f.Name, field)
		}
		p, ok := f.param(name)
		if !ok {
			return nil, nil, errors.Errorf("%s: unknown parameter %q", f.Name, name)
		}
		v, err := d.parseValue(p, value)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s: %s", f.Name, name)
		}
		args[name] = v
	}
	return f, args, nil
}

func (f *Format) param(name string) (Param, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (d *Dictionary) parseValue(p Param, value string) (interface{}, error) {
	switch p.Type {
	case "%*s":
		b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
		return b, errors.Wrap(err, "want hex")
	case "%.*s":
		return value, nil
	}
	if enum, ok := d.enumFor(p); ok {
		if v, err := d.Enum(enum, value); err == nil {
			return v, nil
		}
		if enum == "pin" {
			if v, err := d.LookupPin(value); err == nil {
				return v, nil
			}
		}
	}
	n, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		return nil, errors.Errorf("invalid integer %q", value)
	}
	return n, nil
}
