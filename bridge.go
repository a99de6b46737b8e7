package opusbridge

// Memory represents engine linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of engine linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in engine linear memory
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}
