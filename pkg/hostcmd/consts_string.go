package hostcmd

import "strconv"

var commandNames = map[Command]string{
	EC_CMD_GET_PROTOCOL_INFO: "EC_CMD_GET_PROTOCOL_INFO",
	EC_CMD_GET_NEXT_EVENT:    "EC_CMD_GET_NEXT_EVENT",
	EC_CMD_FP_PASSTHRU:       "EC_CMD_FP_PASSTHRU",
	EC_CMD_FP_MODE:           "EC_CMD_FP_MODE",
	EC_CMD_FP_INFO:           "EC_CMD_FP_INFO",
	EC_CMD_FP_FRAME:          "EC_CMD_FP_FRAME",
	EC_CMD_FP_TEMPLATE:       "EC_CMD_FP_TEMPLATE",
	EC_CMD_FP_CONTEXT:        "EC_CMD_FP_CONTEXT",
	EC_CMD_FP_STATS:          "EC_CMD_FP_STATS",
	EC_CMD_FP_SEED:           "EC_CMD_FP_SEED",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "Command(0x" + strconv.FormatUint(uint64(c), 16) + ")"
}

var statusNames = [...]string{
	EC_RES_SUCCESS:           "EC_RES_SUCCESS",
	EC_RES_INVALID_COMMAND:   "EC_RES_INVALID_COMMAND",
	EC_RES_ERROR:             "EC_RES_ERROR",
	EC_RES_INVALID_PARAM:     "EC_RES_INVALID_PARAM",
	EC_RES_ACCESS_DENIED:     "EC_RES_ACCESS_DENIED",
	EC_RES_INVALID_RESPONSE:  "EC_RES_INVALID_RESPONSE",
	EC_RES_INVALID_VERSION:   "EC_RES_INVALID_VERSION",
	EC_RES_INVALID_CHECKSUM:  "EC_RES_INVALID_CHECKSUM",
	EC_RES_IN_PROGRESS:       "EC_RES_IN_PROGRESS",
	EC_RES_UNAVAILABLE:       "EC_RES_UNAVAILABLE",
	EC_RES_TIMEOUT:           "EC_RES_TIMEOUT",
	EC_RES_OVERFLOW:          "EC_RES_OVERFLOW",
	EC_RES_INVALID_HEADER:    "EC_RES_INVALID_HEADER",
	EC_RES_REQUEST_TRUNCATED: "EC_RES_REQUEST_TRUNCATED",
	EC_RES_RESPONSE_TOO_BIG:  "EC_RES_RESPONSE_TOO_BIG",
	EC_RES_BUS_ERROR:         "EC_RES_BUS_ERROR",
	EC_RES_BUSY:              "EC_RES_BUSY",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}
