package vector

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
)

// flatMagic prefixes every flat index blob.
var flatMagic = [4]byte{'V', 'G', 'F', '1'}

// FlatIndex is an exact brute-force inner-product index. Vectors are stored contiguously,
// row i occupying data[i*dim:(i+1)*dim].
type FlatIndex struct {
	dimensions int
	data       []float32
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Len returns the number of rows.
func (f *FlatIndex) Len() int {
	return len(f.data) / f.dimensions
}

// Add appends vectors after validating every one of them.
func (f *FlatIndex) Add(vectors [][]float32) (int, error) {
	if err := checkDimensions(f.dimensions, vectors); err != nil {
		return 0, err
	}
	start := f.Len()
	grown := slices.Grow(f.data, len(vectors)*f.dimensions)
	for _, v := range vectors {
		grown = append(grown, v...)
	}
	f.data = grown
	return start, nil
}

// Search scores every row against query.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, &DimensionMismatchError{Expected: f.dimensions, Actual: len(query)}
	}
	n := f.Len()
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}
	hits := make([]Hit, n)
	for row := 0; row < n; row++ {
		hits[row] = Hit{Row: row, Score: InnerProduct(query, f.row(row))}
	}
	sortHits(hits)
	if k < n {
		hits = hits[:k]
	}
	return hits, nil
}

// Reconstruct returns a copy of the vector at row.
func (f *FlatIndex) Reconstruct(row int) ([]float32, error) {
	if row < 0 || row >= f.Len() {
		return nil, fmt.Errorf("reconstruct row %d of %d: %w", row, f.Len(), ErrOutOfRange)
	}
	return slices.Clone(f.row(row)), nil
}

func (f *FlatIndex) row(i int) []float32 {
	return f.data[i*f.dimensions : (i+1)*f.dimensions]
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

// Save writes the blob to path. Format: magic (4), dimension (uint32), rows (uint64),
// then rows*dimension little-endian float32 values.
func (f *FlatIndex) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriterSize(file, 256*1024)
	if _, err := f.WriteTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return file.Close()
}

// WriteTo implements io.WriterTo using the blob format described on Save.
func (f *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	var header [16]byte
	copy(header[:4], flatMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], uint32(f.dimensions))
	binary.LittleEndian.PutUint64(header[8:16], uint64(f.Len()))
	n, err := w.Write(header[:])
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("write header: %w", err)
	}
	n, err = w.Write(float32SliceToBytes(f.data))
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("write vectors: %w", err)
	}
	return written, nil
}

// LoadFlatIndex reads a blob written by Save.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	return ReadFlatIndex(bufio.NewReaderSize(file, 256*1024))
}

// ReadFlatIndex decodes a flat index blob from r.
func ReadFlatIndex(r io.Reader) (*FlatIndex, error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if [4]byte(header[:4]) != flatMagic {
		return nil, errors.New("not a flat index blob")
	}
	dim := int(binary.LittleEndian.Uint32(header[4:8]))
	rows := binary.LittleEndian.Uint64(header[8:16])
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d in blob", dim)
	}
	if rows > math.MaxInt32 {
		return nil, fmt.Errorf("row count %d exceeds limit", rows)
	}
	buf := make([]byte, int(rows)*dim*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return &FlatIndex{dimensions: dim, data: bytesToFloat32Slice(buf)}, nil
}

// sortHits orders by score descending, then row ascending.
func sortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
