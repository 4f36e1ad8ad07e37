package hostcmd

// Command represents a host command code.
type Command uint16

const (
	EC_CMD_GET_PROTOCOL_INFO Command = 0x000B
	EC_CMD_GET_NEXT_EVENT    Command = 0x0067
	EC_CMD_FP_PASSTHRU       Command = 0x0400
	EC_CMD_FP_MODE           Command = 0x0402
	EC_CMD_FP_INFO           Command = 0x0403
	EC_CMD_FP_FRAME          Command = 0x0404
	EC_CMD_FP_TEMPLATE       Command = 0x0405
	EC_CMD_FP_CONTEXT        Command = 0x0406
	EC_CMD_FP_STATS          Command = 0x0407
	EC_CMD_FP_SEED           Command = 0x0408
)

// Status is the result code of a host command.
type Status byte

const (
	EC_RES_SUCCESS           Status = 0
	EC_RES_INVALID_COMMAND   Status = 1
	EC_RES_ERROR             Status = 2
	EC_RES_INVALID_PARAM     Status = 3
	EC_RES_ACCESS_DENIED     Status = 4
	EC_RES_INVALID_RESPONSE  Status = 5
	EC_RES_INVALID_VERSION   Status = 6
	EC_RES_INVALID_CHECKSUM  Status = 7
	EC_RES_IN_PROGRESS       Status = 8
	EC_RES_UNAVAILABLE       Status = 9
	EC_RES_TIMEOUT           Status = 10
	EC_RES_OVERFLOW          Status = 11
	EC_RES_INVALID_HEADER    Status = 12
	EC_RES_REQUEST_TRUNCATED Status = 13
	EC_RES_RESPONSE_TOO_BIG  Status = 14
	EC_RES_BUS_ERROR         Status = 15
	EC_RES_BUSY              Status = 16
)

// VersionMask returns the bit of a command version in a supported-versions mask.
func VersionMask(version uint8) uint32 {
	return 1 << version
}

const (
	// PacketSize is the fixed size of every packet on the wire.
	PacketSize = 64
	// INIT_PACKET_BIT marks the first packet of a message.
	INIT_PACKET_BIT byte = 0x80

	initHeaderSize = 6
	contHeaderSize = 1
	initDataSize   = PacketSize - initHeaderSize
	contDataSize   = PacketSize - contHeaderSize
	maxSequence    = 0x7f

	// MaxPayload is the largest payload a message can carry.
	MaxPayload = initDataSize + (maxSequence+1)*contDataSize
)

// ProtocolVersion is the version of the framing reported by GET_PROTOCOL_INFO.
const ProtocolVersion = 3
