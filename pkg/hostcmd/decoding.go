package hostcmd

import (
	"encoding/binary"
	"io"
)

// ReadFrom reads one complete message.
func (m *Message) ReadFrom(r io.Reader) (int64, error) {
	var bytesRead int64
	buf := make([]byte, PacketSize)

	remaining := -1
	for remaining != 0 {
		n, err := io.ReadFull(r, buf)
		bytesRead += int64(n)
		if err != nil {
			return bytesRead, err
		}

		var p packet
		if buf[0]&INIT_PACKET_BIT != 0 {
			if remaining != -1 {
				return bytesRead, ErrInvalidSequence
			}
			p.command = Command(binary.BigEndian.Uint16(buf[1:3]))
			p.code = buf[3]
			p.length = binary.BigEndian.Uint16(buf[4:6])
			if int(p.length) > MaxPayload {
				return bytesRead, ErrMessageTooLarge
			}
			remaining = int(p.length)

			dataCnt := min(remaining, initDataSize)
			p.data = append([]byte(nil), buf[initHeaderSize:initHeaderSize+dataCnt]...)
			remaining -= dataCnt
		} else {
			if remaining == -1 || int(buf[0]) != len(*m)-1 {
				return bytesRead, ErrInvalidSequence
			}
			p.sequence = buf[0]
			p.continuation = true

			dataCnt := min(remaining, contDataSize)
			p.data = append([]byte(nil), buf[contHeaderSize:contHeaderSize+dataCnt]...)
			remaining -= dataCnt
		}

		*m = append(*m, &p)
	}

	return bytesRead, nil
}
