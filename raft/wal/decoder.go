package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	walpd "github.com/thinkermao/raftsm/raft/wal/proto"
	"github.com/thinkermao/raftsm/utils/pd"
)

const frameSizeBytes int32 = 8

type decoder struct {
	brs []*bufio.Reader
}

func makeDecoder(files []*os.File) *decoder {
	readers := make([]*bufio.Reader, len(files))
	for i := range files {
		readers[i] = bufio.NewReader(files[i])
	}
	return &decoder{brs: readers}
}

func (d *decoder) decode(record *walpd.Record) error {
	record.Reset()
	if len(d.brs) == 0 {
		return io.EOF
	}

	length, err := readInt32(d.brs[0])
	if err == io.EOF || (err == nil && length == 0) {
		// hit end of file or preallocated space
		d.brs = d.brs[1:]
		if len(d.brs) == 0 {
			return io.EOF
		}
		return d.decode(record)
	}
	if err != nil {
		return err
	}

	data := make([]byte, ceil(length, frameSizeBytes))
	if _, err = io.ReadFull(d.brs[0], data); err != nil {
		// ReadFull returns io.EOF only if no bytes were read;
		// the decoder should treat this as an ErrUnexpectedEOF instead.
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if err := pd.Unmarshal(record, data[:length]); err != nil {
		return err
	}

	crc := crc32.Checksum(record.Data, crcTable)
	if record.Crc != crc {
		return ErrCRCMismatch
	}
	return nil
}

// ceil round length up to a multiple of frame.
func ceil(length int32, frame int32) int32 {
	return (length + frame - 1) / frame * frame
}

func readInt32(r io.Reader) (int32, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}
