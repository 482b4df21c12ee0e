package core

// Number formatting for dictionary text and debug lines; fmt and strconv
// are kept out of the firmware image.

func itoa(n int) string {
	if n < 0 {
		return "-" + formatUint(uint64(-n))
	}
	return formatUint(uint64(n))
}

func utoa(n uint32) string {
	return formatUint(uint64(n))
}

func formatUint(n uint64) string {
	var buf [20]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// valueToString renders a dictionary constant. Unknown types render empty.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case int64:
		if val < 0 {
			return "-" + formatUint(uint64(-val))
		}
		return formatUint(uint64(val))
	case uint:
		return formatUint(uint64(val))
	case uint8:
		return formatUint(uint64(val))
	case uint16:
		return formatUint(uint64(val))
	case uint32:
		return utoa(val)
	case uint64:
		return formatUint(val)
	default:
		return ""
	}
}
