package backend

import (
	"io"
)

// ReaderInput adapts an io.ReadCloser (typically a live capture stream) to
// an InputHandler. The stream is not seekable and its size is unknown.
type ReaderInput struct {
	r io.ReadCloser
}

func NewReaderInput(r io.ReadCloser) *ReaderInput {
	return &ReaderInput{r: r}
}

func (i *ReaderInput) Read(buf []byte) (int, error) {
	n, err := i.r.Read(buf)
	if err == io.EOF {
		// the boundary contract marks end of stream with a zero read.
		return 0, nil
	}
	return n, err
}

func (i *ReaderInput) Seek(offset int64, whence int) (int64, error) {
	return -1, nil
}

func (i *ReaderInput) Close() error { return i.r.Close() }

func (i *ReaderInput) Size() int64 { return -1 }

func (i *ReaderInput) Stat(statType StatType, value int64) error { return nil }
