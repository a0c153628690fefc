// Package batch evaluates field functions over large point sets in
// fixed-size chunks to bound the peak memory of the evaluator.
package batch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultChunkSize is the number of points evaluated per call by default.
const DefaultChunkSize = 1 << 16

// Field is a batch-in, batch-out query over 3D points, such as a neural
// scene function or a color head.
type Field interface {
	// Channels returns the number of values produced per point.
	Channels() int
	// Evaluate writes Channels() values per point to dst in row-major order.
	// len(dst) == Channels()*len(pos). aux is nil or holds one auxiliary
	// vector per point (e.g. a view direction).
	Evaluate(dst []float64, pos, aux []r3.Vec) error
}

// ScalarFunc adapts a pointwise scalar function to a single channel Field.
type ScalarFunc func(p r3.Vec) float64

func (f ScalarFunc) Channels() int { return 1 }

func (f ScalarFunc) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	for i, p := range pos {
		dst[i] = f(p)
	}
	return nil
}

// VectorFunc adapts a pointwise function returning N values to a Field.
type VectorFunc struct {
	N  int
	Fn func(dst []float64, p, aux r3.Vec)
}

func (f VectorFunc) Channels() int { return f.N }

func (f VectorFunc) Evaluate(dst []float64, pos, aux []r3.Vec) error {
	for i, p := range pos {
		var a r3.Vec
		if aux != nil {
			a = aux[i]
		}
		f.Fn(dst[i*f.N:(i+1)*f.N], p, a)
	}
	return nil
}

// Chunker iterates over contiguous [start,end) ranges of at most size elements
// covering [0,n).
type Chunker struct {
	n, size, next int
}

// NewChunker returns a Chunker over n elements. size must be positive.
func NewChunker(n, size int) *Chunker {
	if size < 1 {
		panic("chunk size must be 1 or larger")
	}
	if n < 0 {
		panic("negative element count")
	}
	return &Chunker{n: n, size: size}
}

// Next returns the next chunk. ok is false once all elements were returned.
func (c *Chunker) Next() (start, end int, ok bool) {
	if c.next >= c.n {
		return c.n, c.n, false
	}
	start = c.next
	end = start + c.size
	if end > c.n {
		end = c.n
	}
	c.next = end
	return start, end, true
}

// Len returns the total number of chunks.
func (c *Chunker) Len() int {
	return (c.n + c.size - 1) / c.size
}

// Evaluator evaluates Fields chunk by chunk. The zero value is ready to use.
type Evaluator struct {
	// ChunkSize is the maximum number of points per Field call.
	// Non-positive values select DefaultChunkSize.
	ChunkSize int
	// OnChunk, if set, is called after every chunk with the number
	// of points evaluated so far and the total.
	OnChunk func(done, total int)
}

// Evaluate is shorthand for an Evaluator with the given chunk size.
func Evaluate(f Field, pos, aux []r3.Vec, chunkSize int) ([]float64, error) {
	e := Evaluator{ChunkSize: chunkSize}
	return e.Evaluate(f, pos, aux)
}

// Evaluate queries f over pos (and aux, zipped by index) in chunks and
// returns the concatenated output, Channels() values per point in input order.
// Errors returned by f are returned unchanged and stop evaluation.
func (e *Evaluator) Evaluate(f Field, pos, aux []r3.Vec) ([]float64, error) {
	if f == nil {
		return nil, errors.New("nil field")
	}
	if aux != nil && len(aux) != len(pos) {
		return nil, fmt.Errorf("auxiliary input length %d does not match %d points", len(aux), len(pos))
	}
	nc := f.Channels()
	if nc < 1 {
		return nil, fmt.Errorf("field must produce at least one channel, got %d", nc)
	}
	size := e.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make([]float64, nc*len(pos))
	chunks := NewChunker(len(pos), size)
	for {
		start, end, ok := chunks.Next()
		if !ok {
			break
		}
		var auxChunk []r3.Vec
		if aux != nil {
			auxChunk = aux[start:end]
		}
		err := f.Evaluate(out[nc*start:nc*end], pos[start:end], auxChunk)
		if err != nil {
			return nil, err
		}
		if e.OnChunk != nil {
			e.OnChunk(end, len(pos))
		}
	}
	return out, nil
}
