package device

import (
	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

// EnrollProgress is reported after every enrollment capture.
type EnrollProgress struct {
	// Result is one of the fptypes.Enroll* codes.
	Result  int
	Percent int
}

// Done reports whether the template has been stored.
func (p EnrollProgress) Done() bool {
	return p.Percent >= 100 && p.Result == fptypes.EnrollOK
}

// Matched is a positive match.
type Matched struct {
	Finger int
	// Updated is set when the sensor refined the template, which then
	// needs to be downloaded again.
	Updated bool
}

// NoMatch is a negative match with its reason, one of the fptypes.Match* codes.
type NoMatch struct {
	Result int
}

// Template is an encrypted template as stored by the host.
type Template struct {
	Finger int
	Data   []byte
}
