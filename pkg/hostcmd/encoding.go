package hostcmd

import (
	"encoding/binary"
	"io"

	"github.com/samber/lo"
)

// NewMessage creates a new message. For requests code is the command
// version, for responses it is the status.
func NewMessage(cmd Command, code byte, data []byte) (Message, error) {
	if len(data) > MaxPayload {
		return nil, ErrMessageTooLarge
	}

	msg := make(Message, 0)
	msg = append(msg, &packet{
		command: cmd,
		code:    code,
		length:  uint16(len(data)),
		// DATA starts from offset 6
		data: lo.Slice(data, 0, initDataSize),
	})

	// the rest of the payload goes into continuation packets
	if len(data) > initDataSize {
		chunks := lo.Chunk[byte](data[initDataSize:], contDataSize)
		for i, chunk := range chunks {
			msg = append(msg, &packet{
				sequence:     byte(i),
				data:         chunk,
				continuation: true,
			})
		}
	}

	return msg, nil
}

// WriteTo writes the message packet by packet. Every packet is padded to
// PacketSize bytes.
func (m Message) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, p := range m {
		buf := make([]byte, PacketSize)
		p.encode(buf)

		n, err := w.Write(buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (p *packet) encode(buf []byte) {
	if p.continuation {
		// SEQ: offset 0; length 1
		buf[0] = p.sequence &^ INIT_PACKET_BIT
		// DATA: offset 1; length 63
		copy(buf[contHeaderSize:], p.data)
		return
	}

	// MARKER: offset 0; length 1
	buf[0] = INIT_PACKET_BIT
	// CMD: offset 1; length 2
	binary.BigEndian.PutUint16(buf[1:3], uint16(p.command))
	// VERSION or STATUS: offset 3; length 1
	buf[3] = p.code
	// BCNTH and BCNTL: offset 4; length 2
	binary.BigEndian.PutUint16(buf[4:6], p.length)
	// DATA: offset 6; length 58
	copy(buf[initHeaderSize:], p.data)
}
