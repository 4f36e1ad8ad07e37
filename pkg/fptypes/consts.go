package fptypes

// Mode is the sensor mode word shared between the host and the sensor task.
type Mode uint32

const (
	ModeDeepSleep     Mode = 1 << 0
	ModeFingerDown    Mode = 1 << 1
	ModeFingerUp      Mode = 1 << 2
	ModeCapture       Mode = 1 << 3
	ModeEnrollSession Mode = 1 << 4
	ModeEnrollImage   Mode = 1 << 5
	ModeMatch         Mode = 1 << 6
	ModeResetSensor   Mode = 1 << 7
	ModeDontChange    Mode = 1 << 31

	ModeValid = ModeDeepSleep | ModeFingerDown | ModeFingerUp | ModeCapture |
		ModeEnrollSession | ModeEnrollImage | ModeMatch | ModeResetSensor | ModeDontChange

	ModeCaptureTypeShift      = 28
	ModeCaptureTypeMask  Mode = 0x7 << ModeCaptureTypeShift

	// ModeAnyCapture is set whenever the next finger on the sensor must be captured.
	ModeAnyCapture = ModeCapture | ModeEnrollImage | ModeMatch
	// ModeAnyDetectFinger is set whenever finger presence has to be tracked.
	ModeAnyDetectFinger = ModeFingerDown | ModeFingerUp | ModeAnyCapture
	// ModeAnyWaitIRQ is set whenever the sensor interrupt has to be armed.
	ModeAnyWaitIRQ = ModeFingerDown | ModeAnyCapture
)

// CaptureType selects the kind of image acquired in capture mode.
type CaptureType uint32

const (
	CaptureVendorFormat CaptureType = iota
	CaptureSimpleImage
	CapturePattern0
	CapturePattern1
	CaptureQualityTest
	CaptureResetTest
	CaptureTypeMax
)

// Frame index encoding used by FP_FRAME offsets.
const (
	FrameIndexShift           = 28
	FrameOffsetMask    uint32 = 0x0FFFFFFF
	FrameIndexRawImage uint32 = 0
	FrameIndexTemplate uint32 = 1
)

// TemplateCommit marks the last chunk of an FP_TEMPLATE upload.
const TemplateCommit uint32 = 0x80000000

// TemplateFormatVersion is the version of the encrypted template envelope.
const TemplateFormatVersion uint16 = 3

// Sizes of the context material exchanged with the host.
const (
	ContextNonceBytes  = 12
	ContextSaltBytes   = 16
	ContextTagBytes    = 16
	ContextUserIDBytes = 32
	ContextTPMBytes    = 32
)

// Event is the fingerprint MKBP event word. Bits are accumulated by the
// sensor and read-and-cleared by the host.
type Event uint32

const (
	EventErrcodeMask          Event = 0x0000000F
	EventEnrollProgressOffset       = 4
	EventEnrollProgressMask   Event = 0x00000FF0
	EventMatchIdxOffset             = 12
	EventMatchIdxMask         Event = 0x0000F000
	EventRawMask              Event = 0x00FFFFFF

	EventEnroll     Event = 1 << 27
	EventMatch      Event = 1 << 28
	EventFingerDown Event = 1 << 29
	EventFingerUp   Event = 1 << 30
	EventImageReady Event = 1 << 31
)

// Enrollment result codes carried in the event errcode field.
const (
	EnrollOK          = 0
	EnrollLowQuality  = 1
	EnrollImmobile    = 2
	EnrollLowCoverage = 3
	EnrollInternal    = 5
)

// Match result codes carried in the event errcode field.
const (
	MatchNo              = 0
	MatchYes             = 1
	MatchNoLowQuality    = 2
	MatchYesUpdated      = 3
	MatchNoLowCoverage   = 4
	MatchYesUpdateFailed = 5
	MatchNoInternal      = 6
	MatchNoTemplates     = 7
)

// Flags of FPStatsResponse.TimestampsInvalid.
const (
	StatsCaptureInvalid  uint8 = 1 << 0
	StatsMatchingInvalid uint8 = 1 << 1
)

// Flags of FPPassthruRequest.Flags.
const PassthruNotComplete uint8 = 1 << 0
