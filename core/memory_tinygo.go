//go:build tinygo

package core

import "unsafe"

func readMemory(order, addr uint32) uint32 {
	switch order {
	case 1:
		return uint32(*(*uint16)(unsafe.Pointer(uintptr(addr))))
	case 2:
		return *(*uint32)(unsafe.Pointer(uintptr(addr)))
	default:
		return 0
	}
}
