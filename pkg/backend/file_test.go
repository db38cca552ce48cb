package backend

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "input.ts")
	payload := bytes.Repeat([]byte{0x47, 0x1f, 0xff}, 1000)
	if err := os.WriteFile(src, payload, 0644); err != nil {
		t.Fatal(err)
	}

	in, err := FileInputOpener{}.Open(1, src)
	if err != nil {
		t.Fatal(err)
	}
	if in.Size() != int64(len(payload)) {
		t.Errorf("got size %d, expected %d", in.Size(), len(payload))
	}

	out, err := FileOutputOpener{Dir: dir}.Open(1, 0, 0, 1, "", FMP4Segment)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		if _, err := out.Write(buf[:n]); err != nil {
			t.Fatal(err)
		}
	}
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "fsegment0-00001.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("output does not match input, got %d bytes, expected %d", len(got), len(payload))
	}
}

func TestFileInput_EOSIsZeroNil(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.ts")
	if err := os.WriteFile(src, nil, 0644); err != nil {
		t.Fatal(err)
	}

	in, err := FileInputOpener{}.Open(1, src)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	n, err := in.Read(make([]byte, 16))
	if n != 0 || err != nil {
		t.Errorf("got (%d, %v), expected (0, nil) at end of stream", n, err)
	}
}

func TestFileInput_Seek(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "input.ts")
	if err := os.WriteFile(src, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	in, err := FileInputOpener{}.Open(1, src)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	// flag bits above the low 16 must not change the seek mode.
	off, err := in.Seek(4, 0x10000|0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 4 {
		t.Errorf("got offset %d, expected 4", off)
	}
	buf := make([]byte, 2)
	if _, err := in.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "45" {
		t.Errorf("got %q, expected 45", buf)
	}
}

func TestReaderInput_EOSIsZeroNil(t *testing.T) {
	in := NewReaderInput(io.NopCloser(bytes.NewReader([]byte("abc"))))
	if in.Size() != -1 {
		t.Errorf("got size %d, expected -1 for a live stream", in.Size())
	}

	buf := make([]byte, 16)
	n, err := in.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "abc" {
		t.Errorf("got %q, expected abc", buf[:n])
	}
	n, err = in.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("got (%d, %v), expected (0, nil) at end of stream", n, err)
	}
}
