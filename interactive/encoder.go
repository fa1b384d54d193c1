package interactive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	formatVersionV1 = 1
	maxStages       = 255
	maxStageLen     = 255
)

var errCorrupt = errors.New("interactive session corrupt")

// Encode serializes s without its id; the id is the Redis key suffix.
func Encode(s *Session) ([]byte, error) {
	if len(s.Completed) > maxStages {
		return nil, errors.New("too many completed stages")
	}

	var buf bytes.Buffer
	buf.WriteByte(formatVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(s.Completed)))
	for _, stage := range s.Completed {
		if stage == "" || len(stage) > maxStageLen {
			return nil, errors.New("invalid stage id length")
		}
		buf.WriteByte(byte(len(stage)))
		buf.WriteString(stage)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errCorrupt
	}
	if version != formatVersionV1 {
		return nil, errors.New("unsupported interactive session version")
	}

	s := &Session{}
	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, errCorrupt
	}

	count, err := r.ReadByte()
	if err != nil {
		return nil, errCorrupt
	}

	s.Completed = make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		n, err := r.ReadByte()
		if err != nil || n == 0 {
			return nil, errCorrupt
		}
		stage := make([]byte, n)
		if _, err := io.ReadFull(r, stage); err != nil {
			return nil, errCorrupt
		}
		s.Completed = append(s.Completed, string(stage))
	}

	if r.Len() != 0 {
		return nil, errCorrupt
	}

	return s, nil
}
