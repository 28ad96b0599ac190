package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/seglog/internal/fs"
)

// FileReader reads one record file sequentially. Any single file can be
// decoded in isolation: its channel section is complete for every channel
// its messages reference.
type FileReader struct {
	file   fs.File
	br     *bufio.Reader
	header Header
	footer *Footer
	done   bool
}

// OpenFile opens a record file and reads its header. fsys nil means the
// local file system.
func OpenFile(fsys fs.FileSystem, path string) (*FileReader, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	file, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open record file %s: %w", path, err)
	}

	br := bufio.NewReader(file)
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(br, buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read record header %s: %w", path, err)
	}
	header, err := decodeHeader(buf)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FileReader{file: file, br: br, header: header}, nil
}

// Header returns the file header.
func (r *FileReader) Header() Header { return r.header }

// Footer returns the file footer, available after Scan has consumed the
// whole file. It is nil for a file that was never finalized.
func (r *FileReader) Footer() *Footer { return r.footer }

// Scan reads the file from front to back, invoking onChannel for each
// channel record and onMessage for each message record, in file order.
// It stops at the footer or at end of file. A file cut short mid-record
// (a crashed, never-finalized segment) yields the records read up to that
// point and no error.
func (r *FileReader) Scan(onChannel func(Channel) error, onMessage func(Message) error) error {
	if r.done {
		return errors.New("record file already scanned")
	}
	r.done = true

	for {
		kind, err := r.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch kind {
		case kindChannel:
			ch, err := decodeChannel(r.br)
			if err != nil {
				return truncatedOK(err)
			}
			if onChannel != nil {
				if err := onChannel(ch); err != nil {
					return err
				}
			}
		case kindMessage:
			m, err := decodeMessage(r.br, r.header.Compression)
			if err != nil {
				return truncatedOK(err)
			}
			if onMessage != nil {
				if err := onMessage(m); err != nil {
					return err
				}
			}
		case kindFooter:
			f, err := decodeFooter(r.br)
			if err != nil {
				return truncatedOK(err)
			}
			r.footer = &f
			return nil
		default:
			return fmt.Errorf("unknown record kind %d", kind)
		}
	}
}

func truncatedOK(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Close releases the underlying file.
func (r *FileReader) Close() error {
	return r.file.Close()
}

// Contents is the fully decoded form of one record file.
type Contents struct {
	Header   Header
	Channels []Channel
	Messages []Message
	Footer   *Footer
}

// ReadFile decodes an entire record file. Convenience for replay tooling
// and tests.
func ReadFile(fsys fs.FileSystem, path string) (*Contents, error) {
	r, err := OpenFile(fsys, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	c := &Contents{Header: r.Header()}
	err = r.Scan(
		func(ch Channel) error {
			c.Channels = append(c.Channels, ch)
			return nil
		},
		func(m Message) error {
			c.Messages = append(c.Messages, m)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	c.Footer = r.Footer()
	return c, nil
}
