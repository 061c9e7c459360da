package wal

import (
	"encoding/binary"
	"hash/crc32"
	"os"

	walpd "github.com/thinkermao/raftsm/raft/wal/proto"
	"github.com/thinkermao/raftsm/utils/pd"
)

type encoder struct {
	file *os.File
}

func makeEncoder(file *os.File) *encoder {
	return &encoder{file: file}
}

// encode write one record: [i32 LE length][payload][zero padding],
// padded to a multiple of frameSizeBytes.
func (e *encoder) encode(record *walpd.Record) error {
	record.Crc = crc32.Checksum(record.Data, crcTable)

	bytes, err := pd.Marshal(record)
	if err != nil {
		return err
	}

	length := int32(len(bytes))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(length))
	if _, err := e.file.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := e.file.Write(bytes); err != nil {
		return err
	}
	padding := make([]byte, ceil(length, frameSizeBytes)-length)
	if _, err := e.file.Write(padding); err != nil {
		return err
	}
	return nil
}

func (e *encoder) flush() error {
	return e.file.Sync()
}
