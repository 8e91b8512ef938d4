package linker

type ChunkHdr struct {
	Offset uint32
	Size   uint32
}

// Chunker is one contiguous piece of the output file. UpdateHdr sizes the
// chunk, CopyBuf writes it once every offset is known.
type Chunker interface {
	UpdateHdr(out *OutputFile)
	CopyBuf(out *OutputFile)
}

type Chunk struct {
	Name string
	Hdr  ChunkHdr
}

func NewChunk() Chunk {
	return Chunk{}
}

func (c *Chunk) UpdateHdr(out *OutputFile) {}

func (c *Chunk) CopyBuf(out *OutputFile) {}
