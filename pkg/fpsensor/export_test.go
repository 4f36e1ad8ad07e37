package fpsensor

import "time"

const (
	TaskEventSensorIRQ    = taskEventSensorIRQ
	TaskEventUpdateConfig = taskEventUpdateConfig
	TaskEventTimer        = taskEventTimer
	NoTimeout             = noTimeout
)

// InitDriver initializes the driver without starting the sensor task.
func (s *Sensor) InitDriver() error {
	return s.driver.Init(s.Interrupt)
}

// Step runs a single task cycle.
func (s *Sensor) Step(evt uint32, timeout time.Duration) time.Duration {
	return s.step(evt, timeout)
}

// Template returns a copy of template slot idx.
func (s *Sensor) Template(idx int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.store.slot(idx)...)
}

// EncryptionBuffer returns a copy of the template encryption staging buffer.
func (s *Sensor) EncryptionBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.encrypted...)
}

// UserID returns a copy of the active user id.
func (s *Sensor) UserID() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.userID[:]...)
}
