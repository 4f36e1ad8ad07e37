package fptypes

type FPModeRequest struct {
	Mode Mode `cbor:"1,keyasint"`
}

type FPModeResponse struct {
	Mode Mode `cbor:"1,keyasint"`
}

// FPInfoResponse is the FP_INFO response. Version 0 carries the sensor
// fields only; version 1 appends the template fields.
type FPInfoResponse struct {
	VendorID    uint32 `cbor:"1,keyasint"`
	ProductID   uint32 `cbor:"2,keyasint"`
	ModelID     uint32 `cbor:"3,keyasint"`
	Version     uint32 `cbor:"4,keyasint"`
	FrameSize   uint32 `cbor:"5,keyasint"`
	PixelFormat uint32 `cbor:"6,keyasint"`
	Width       uint16 `cbor:"7,keyasint"`
	Height      uint16 `cbor:"8,keyasint"`
	BPP         uint16 `cbor:"9,keyasint"`
	Errors      uint16 `cbor:"10,keyasint"`

	TemplateSize    uint32 `cbor:"11,keyasint,omitempty"`
	TemplateMax     uint16 `cbor:"12,keyasint,omitempty"`
	TemplateValid   uint16 `cbor:"13,keyasint,omitempty"`
	TemplateDirty   uint32 `cbor:"14,keyasint,omitempty"`
	TemplateVersion uint32 `cbor:"15,keyasint,omitempty"`
	ContextID       []byte `cbor:"16,keyasint,omitempty"`
}

type FPFrameRequest struct {
	Offset uint32 `cbor:"1,keyasint"`
	Size   uint32 `cbor:"2,keyasint"`
}

type FPFrameResponse struct {
	Data []byte `cbor:"1,keyasint"`
}

// FPTemplateRequest carries one chunk of an encrypted template. The high bit
// of Size is TemplateCommit on the final chunk.
type FPTemplateRequest struct {
	Offset uint32 `cbor:"1,keyasint"`
	Size   uint32 `cbor:"2,keyasint"`
	Data   []byte `cbor:"3,keyasint"`
}

type FPContextRequest struct {
	Nonce  []byte `cbor:"1,keyasint,omitempty"`
	UserID []byte `cbor:"2,keyasint"`
}

type FPSeedRequest struct {
	StructVersion uint16 `cbor:"1,keyasint"`
	Seed          []byte `cbor:"2,keyasint"`
}

type FPStatsResponse struct {
	CaptureTimeUs     uint32 `cbor:"1,keyasint"`
	MatchingTimeUs    uint32 `cbor:"2,keyasint"`
	OverallTimeUs     uint32 `cbor:"3,keyasint"`
	OverallT0Lo       uint32 `cbor:"4,keyasint"`
	OverallT0Hi       uint32 `cbor:"5,keyasint"`
	TimestampsInvalid uint8  `cbor:"6,keyasint"`
	TemplateMatched   int8   `cbor:"7,keyasint"`
}

type FPPassthruRequest struct {
	Len   uint16 `cbor:"1,keyasint"`
	Flags uint8  `cbor:"2,keyasint,omitempty"`
	Data  []byte `cbor:"3,keyasint"`
}

type FPPassthruResponse struct {
	Data []byte `cbor:"1,keyasint"`
}

type GetNextEventResponse struct {
	EventType uint8  `cbor:"1,keyasint"`
	Data      uint32 `cbor:"2,keyasint"`
}

type ProtocolInfoResponse struct {
	ProtocolVersions   uint32 `cbor:"1,keyasint"`
	MaxRequestPacket   uint16 `cbor:"2,keyasint"`
	MaxResponsePacket  uint16 `cbor:"3,keyasint"`
	MaxRequestPayload  uint32 `cbor:"4,keyasint"`
	MaxResponsePayload uint32 `cbor:"5,keyasint"`
}

// MKBP event source for fingerprint events.
const MKBPEventFingerprint uint8 = 5
