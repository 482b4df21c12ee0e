package core

import (
	"bytes"
	"compress/zlib"
	"sort"
	"strconv"
	"sync"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{} // Can be string, int, etc.
}

// Enumeration represents an enumeration of values (like pin names)
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary manages the data dictionary sent to Klipper host
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte // Cached compressed dictionary
	builtCount    int    // Registry size when cachedDict was built
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "gopper-stm32h7-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// AddConstant adds a constant to the dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{
		Name:  name,
		Value: value,
	}
	d.cachedDict = nil
}

// AddEnumeration adds an enumeration to the dictionary. values is indexed
// by enumeration value; empty entries are left out.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enumerations[name] = &Enumeration{
		Name:   name,
		Values: append([]string(nil), values...),
	}
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// SetBuildVersions sets the build versions string
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cachedDict = nil
}

// BuildDictionary builds and caches the zlib compressed dictionary. Call it
// after all commands, constants and enumerations are registered.
func (d *Dictionary) BuildDictionary() error {
	// Fetch commands before taking the dictionary lock; the registry has its
	// own lock.
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands, responses)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(jsonData); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	d.cachedDict = buf.Bytes()
	d.builtCount = len(commands) + len(responses)
	DebugPrintln("[BuildDict] " + itoa(len(jsonData)) + " bytes, " + itoa(len(d.cachedDict)) + " compressed")
	return nil
}

// Generate returns the compressed dictionary. It is rebuilt when anything
// was registered since the last build.
func (d *Dictionary) Generate() []byte {
	count := d.commandReg.Count()
	d.mu.RLock()
	cached := d.cachedDict
	stale := d.builtCount != count
	d.mu.RUnlock()
	if cached != nil && !stale {
		return cached
	}
	if err := d.BuildDictionary(); err != nil {
		DebugPrintln("[BuildDict] ERROR: " + err.Error())
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cachedDict
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands, responses)
}

func appendQuoted(dst []byte, s string) []byte {
	return strconv.AppendQuote(dst, s)
}

// appendIDs writes a {"format":id,...} object ordered by id.
func appendIDs(dst []byte, ids map[string]int) []byte {
	formats := make([]string, 0, len(ids))
	for f := range ids {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return ids[formats[i]] < ids[formats[j]] })

	dst = append(dst, '{')
	for i, f := range formats {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendQuoted(dst, f)
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, int64(ids[f]), 10)
	}
	return append(dst, '}')
}

// buildJSONLocked builds the JSON dictionary (caller must hold lock)
func (d *Dictionary) buildJSONLocked(commands, responses map[string]int) []byte {
	result := make([]byte, 0, 2048)

	result = append(result, `{"version":`...)
	result = appendQuoted(result, d.version)
	result = append(result, `,"build_versions":`...)
	result = appendQuoted(result, d.buildVersions)

	result = append(result, `,"config":{`...)
	constNames := make([]string, 0, len(d.constants))
	for name := range d.constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)
	for i, name := range constNames {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendQuoted(result, name)
		result = append(result, ':')
		result = appendQuoted(result, valueToString(d.constants[name].Value))
	}
	result = append(result, '}')

	result = append(result, `,"commands":`...)
	result = appendIDs(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDs(result, responses)

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)
		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sort.Strings(enumNames)
		for i, name := range enumNames {
			if i > 0 {
				result = append(result, ',')
			}
			result = appendQuoted(result, name)
			result = append(result, ":{"...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = appendQuoted(result, value)
				result = append(result, ':')
				result = strconv.AppendInt(result, int64(idx), 10)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

// GetChunk returns a copy of up to count bytes of the compressed dictionary
// starting at offset. Offsets at or past the end give an empty chunk.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()

	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
