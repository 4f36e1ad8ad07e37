package fptypes

// Errcode returns the enroll or match result code.
func (e Event) Errcode() int {
	return int(e & EventErrcodeMask)
}

// EnrollProgress returns the enrollment completion percentage.
func (e Event) EnrollProgress() int {
	return int((e & EventEnrollProgressMask) >> EventEnrollProgressOffset)
}

// MatchIndex returns the index of the matched finger.
func (e Event) MatchIndex() int {
	return int((e & EventMatchIdxMask) >> EventMatchIdxOffset)
}

// IsMatch reports whether the match result code denotes a positive match.
func (e Event) IsMatch() bool {
	if e&EventMatch == 0 {
		return false
	}
	switch e.Errcode() {
	case MatchYes, MatchYesUpdated, MatchYesUpdateFailed:
		return true
	default:
		return false
	}
}

// EnrollEvent builds an enrollment event word.
func EnrollEvent(code int, percent int) Event {
	return EventEnroll | (Event(code) & EventErrcodeMask) |
		((Event(percent) << EventEnrollProgressOffset) & EventEnrollProgressMask)
}

// MatchEvent builds a match event word. A negative finger index leaves the
// index field at its all-ones value, like the sign extension of the wire format.
func MatchEvent(code int, finger int) Event {
	return EventMatch | (Event(code) & EventErrcodeMask) |
		((Event(uint32(int32(finger))) << EventMatchIdxOffset) & EventMatchIdxMask)
}
