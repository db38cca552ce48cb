package backend

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileInputOpener opens session inputs from the local filesystem.
type FileInputOpener struct{}

func (FileInputOpener) Open(handle int64, url string) (InputHandler, error) {
	f, err := os.Open(url)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	log.Debug().Int64("Handle", handle).Str("URL", url).Int64("Size", fi.Size()).Msg("input opened")
	return &fileInput{f: f, size: fi.Size()}, nil
}

type fileInput struct {
	f    *os.File
	size int64
}

func (i *fileInput) Read(buf []byte) (int, error) {
	n, err := i.f.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (i *fileInput) Seek(offset int64, whence int) (int64, error) {
	return i.f.Seek(offset, MaskWhence(whence))
}

func (i *fileInput) Close() error { return i.f.Close() }

func (i *fileInput) Size() int64 { return i.size }

func (i *fileInput) Stat(statType StatType, value int64) error { return nil }

// FileOutputOpener writes session outputs into Dir using the standard
// segment naming convention.
type FileOutputOpener struct {
	Dir string
}

func (o FileOutputOpener) Open(handle, slot int64, streamIndex, segIndex int, name string, outType OutType) (OutputHandler, error) {
	fileName, err := FileName(outType, streamIndex, segIndex, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(o.Dir, fileName))
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("Handle", handle).Int64("Slot", slot).Str("File", fileName).Msg("output opened")
	return &fileOutput{f: f}, nil
}

type fileOutput struct {
	f *os.File
}

func (o *fileOutput) Write(buf []byte) (int, error) {
	return o.f.Write(buf)
}

func (o *fileOutput) Seek(offset int64, whence int) (int64, error) {
	return o.f.Seek(offset, MaskWhence(whence))
}

func (o *fileOutput) Close() error { return o.f.Close() }

func (o *fileOutput) Stat(statType StatType, value int64) error { return nil }
