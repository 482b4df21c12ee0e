package mcu

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopperh7/protocol"
)

const testDict = `{"version":"v1","build_versions":"test","config":{"CLOCK_FREQ":"400000000","MCU":"sim"},` +
	`"commands":{"identify offset=%u count=%c":1,"spi_set_sw_bus oid=%c miso_pin=%u mosi_pin=%u sclk_pin=%u mode=%u pulse_ticks=%u":5,` +
	`"spi_transfer oid=%c data=%*s":6,"set_debug enable=%c":7},` +
	`"responses":{"identify_response offset=%u data=%.*s":0,"stepper_position oid=%c pos=%i":2,"is_shutdown static_string_id=%hu":3},` +
	`"enumerations":{"pin":{"PA0":0,"PA5":5,"PA7":7,"PB4":20},"static_string_id":{"Invalid gpio":7}}}`

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(6, "spi_transfer oid=%c data=%*s")
	require.NoError(t, err)
	assert.Equal(t, "spi_transfer", f.Name)
	assert.Equal(t, []Param{{"oid", "%c"}, {"data", "%*s"}}, f.Params)

	f, err = ParseFormat(3, "get_clock")
	require.NoError(t, err)
	assert.Empty(t, f.Params)

	_, err = ParseFormat(1, "")
	assert.Error(t, err)
	_, err = ParseFormat(1, "x a=%q")
	assert.Error(t, err)
	_, err = ParseFormat(1, "x a")
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	f, err := ParseFormat(9, "mixed oid=%c pos=%i ticks=%u data=%*s")
	require.NoError(t, err)

	out := protocol.NewScratchOutput()
	require.NoError(t, f.Encode(out, map[string]interface{}{
		"oid":   uint8(3),
		"pos":   int32(-1000),
		"ticks": 400,
		"data":  []byte{0xde, 0xad},
	}))

	data := append([]byte(nil), out.Result()...)
	id, err := protocol.DecodeVLQUint(&data)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), id)

	r, err := f.Decode(&data)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, map[string]interface{}{
		"oid":   uint32(3),
		"pos":   int32(-1000),
		"ticks": uint32(400),
		"data":  []byte{0xde, 0xad},
	}, r.Params)
	assert.Equal(t, "mixed oid=3 pos=-1000 ticks=400 data=dead", r.String())
}

func TestEncodeErrors(t *testing.T) {
	f, err := ParseFormat(6, "spi_transfer oid=%c data=%*s")
	require.NoError(t, err)
	out := protocol.NewScratchOutput()

	assert.Error(t, f.Encode(out, map[string]interface{}{"oid": 1}))
	assert.Error(t, f.Encode(out, map[string]interface{}{"oid": 1, "data": []byte{}, "extra": 2}))
	assert.Error(t, f.Encode(out, map[string]interface{}{"oid": "one", "data": []byte{}}))
	assert.Error(t, f.Encode(out, map[string]interface{}{"oid": 1, "data": 5}))
}

func TestDecodeMasksNarrowTypes(t *testing.T) {
	f, err := ParseFormat(0, "r a=%c b=%hu")
	require.NoError(t, err)
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 0x1ff)
	protocol.EncodeVLQUint(out, 0x1ffff)
	data := append([]byte(nil), out.Result()...)

	r, err := f.Decode(&data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xff), r.Uint("a"))
	assert.Equal(t, uint32(0xffff), r.Uint("b"))
}

func TestParseDictionary(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(testDict))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	for _, data := range [][]byte{buf.Bytes(), []byte(testDict)} {
		d, err := ParseDictionary(data)
		require.NoError(t, err)
		assert.Equal(t, "v1", d.Version)
		assert.JSONEq(t, testDict, string(d.JSON()))

		f, ok := d.Command("spi_transfer")
		require.True(t, ok)
		assert.Equal(t, uint16(6), f.ID)
		r, ok := d.Response(2)
		require.True(t, ok)
		assert.Equal(t, "stepper_position", r.Name)

		freq, err := d.ConstantInt("CLOCK_FREQ")
		require.NoError(t, err)
		assert.Equal(t, int64(400000000), freq)
		_, err = d.ConstantInt("MCU")
		assert.Error(t, err)

		assert.Equal(t, []string{"identify", "spi_set_sw_bus", "spi_transfer", "set_debug"}, d.CommandNames())
		assert.Equal(t, []string{"PA0", "PA5", "PA7", "PB4"}, d.Pins())
		assert.Equal(t, "Invalid gpio", d.StaticString(7))
		assert.Equal(t, "static string 9", d.StaticString(9))
	}

	_, err = ParseDictionary([]byte("{"))
	assert.Error(t, err)
	_, err = ParseDictionary([]byte{0x78, 0x9c, 0x00})
	assert.Error(t, err)
}

func TestLookupPin(t *testing.T) {
	d, err := ParseDictionary([]byte(testDict))
	require.NoError(t, err)

	pin, err := d.LookupPin("pb4")
	require.NoError(t, err)
	assert.Equal(t, uint32(20), pin)

	_, err = d.LookupPin("PZ1")
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	d, err := ParseDictionary([]byte(testDict))
	require.NoError(t, err)

	f, args, err := d.ParseCommand([]string{"spi_set_sw_bus", "oid=0", "miso_pin=PB4",
		"mosi_pin=pa7", "sclk_pin=5", "mode=0x3", "pulse_ticks=400"})
	require.NoError(t, err)
	assert.Equal(t, "spi_set_sw_bus", f.Name)
	assert.Equal(t, map[string]interface{}{
		"oid":         int64(0),
		"miso_pin":    uint32(20),
		"mosi_pin":    uint32(7),
		"sclk_pin":    int64(5),
		"mode":        int64(3),
		"pulse_ticks": int64(400),
	}, args)

	_, args, err = d.ParseCommand([]string{"spi_transfer", "oid=1", "data=0xa5ff"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa5, 0xff}, args["data"])

	for _, bad := range [][]string{
		nil,
		{"nope"},
		{"spi_transfer", "oid"},
		{"spi_transfer", "bus=1"},
		{"spi_transfer", "data=zz"},
		{"spi_set_sw_bus", "miso_pin=PZ9"},
	} {
		_, _, err := d.ParseCommand(bad)
		assert.Error(t, err, "%q", bad)
	}
}
