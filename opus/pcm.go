package opus

import "unsafe"

// Sample buffers cross the engine boundary as little-endian bytes. The
// reinterpretations below avoid per-sample copies; supported hosts are
// little-endian, matching WASM memory order.

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
