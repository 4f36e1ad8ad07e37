package hostcmd

// Message is a sequence of packets.
type Message []*packet

// packet represents a single fixed-size packet of a message.
type packet struct {
	command      Command
	code         byte
	sequence     byte
	length       uint16
	data         []byte
	continuation bool
}

// Command returns the command carried by the init packet.
func (m Message) Command() Command {
	if len(m) == 0 {
		return 0
	}
	return m[0].command
}

// Code returns the version byte of a request or the status byte of a response.
func (m Message) Code() byte {
	if len(m) == 0 {
		return 0
	}
	return m[0].code
}

// Payload concatenates packet data up to the declared length.
func (m Message) Payload() []byte {
	if len(m) == 0 {
		return nil
	}

	out := make([]byte, 0, m[0].length)
	for _, p := range m {
		out = append(out, p.data...)
	}
	return out[:m[0].length]
}

// Response is a decoded host command response.
type Response struct {
	Command Command
	Status  Status
	Data    []byte
}
