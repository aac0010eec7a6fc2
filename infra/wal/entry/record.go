package entry

import "time"

// RecordType tags a WAL frame with the command it persists.
type RecordType uint8

const (
	RecordPlace RecordType = iota
	RecordCancel
	RecordReplace
)

// Record is one durable command. Seq is assigned by the writer and is
// strictly increasing across segments.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
