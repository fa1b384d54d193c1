package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordVersionV1 = 1

func encodeRecord(d *Device) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)

	for _, field := range []string{d.UserID, d.DeviceID, d.DisplayName, d.LastSeenIP} {
		if len(field) > 65535 {
			return nil, errors.New("device record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, d.LastSeenTS); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Device, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid device record version")
	}

	fields := make([]string, 4)
	for i := range fields {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}

	d := &Device{
		UserID:      fields[0],
		DeviceID:    fields[1],
		DisplayName: fields[2],
		LastSeenIP:  fields[3],
	}
	if err := binary.Read(r, binary.BigEndian, &d.LastSeenTS); err != nil {
		return nil, err
	}
	if d.UserID == "" || d.DeviceID == "" {
		return nil, errors.New("device record missing owner")
	}

	return d, nil
}
