package fptypes

// CaptureType extracts the capture type field.
func (m Mode) CaptureType() CaptureType {
	return CaptureType((m & ModeCaptureTypeMask) >> ModeCaptureTypeShift)
}

// WithCaptureType returns m with the capture type field replaced.
func (m Mode) WithCaptureType(t CaptureType) Mode {
	return (m &^ ModeCaptureTypeMask) | ((Mode(t) << ModeCaptureTypeShift) & ModeCaptureTypeMask)
}

// IsRawCapture reports whether frames captured in this mode are returned unprocessed.
func (m Mode) IsRawCapture() bool {
	t := m.CaptureType()
	return t == CaptureVendorFormat || t == CaptureQualityTest
}

// IsTestCapture reports whether the mode asks for a test pattern that does
// not need a finger on the sensor.
func (m Mode) IsTestCapture() bool {
	if m&ModeCapture == 0 {
		return false
	}
	switch m.CaptureType() {
	case CapturePattern0, CapturePattern1, CaptureResetTest:
		return true
	default:
		return false
	}
}

// FrameIndex splits an FP_FRAME offset into buffer index and byte offset.
func FrameIndex(offset uint32) (idx uint32, off uint32) {
	return (offset >> FrameIndexShift) & 0xF, offset & FrameOffsetMask
}

// FrameOffset builds an FP_FRAME offset from a buffer index and byte offset.
func FrameOffset(idx uint32, off uint32) uint32 {
	return (idx << FrameIndexShift) | (off & FrameOffsetMask)
}
