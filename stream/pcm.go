package stream

import "unsafe"

// Chunks cross the stage boundary as little-endian bytes; the views below
// reinterpret without copying where the chunk happens to be aligned for
// the sample type. Supported hosts are little-endian, matching WASM
// memory order.

func int16View(b []byte) []int16 {
	if len(b) == 0 {
		return nil
	}
	p := unsafe.Pointer(&b[0])
	if uintptr(p)%unsafe.Alignof(int16(0)) == 0 {
		return unsafe.Slice((*int16)(p), len(b)/2)
	}
	out := make([]int16, len(b)/2)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*2), b)
	return out
}

func float32View(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	p := unsafe.Pointer(&b[0])
	if uintptr(p)%unsafe.Alignof(float32(0)) == 0 {
		return unsafe.Slice((*float32)(p), len(b)/4)
	}
	out := make([]float32, len(b)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*4), b)
	return out
}

func int16Bytes(s []int16) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2)
}

func float32Bytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}
