package fpsensor

import (
	"errors"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/google/uuid"
)

// Register installs the fingerprint host commands on srv.
func (s *Sensor) Register(srv *hostcmd.Server) {
	srv.Register(hostcmd.EC_CMD_FP_PASSTHRU, hostcmd.VersionMask(0), s.handlePassthru)
	srv.Register(hostcmd.EC_CMD_FP_MODE, hostcmd.VersionMask(0), s.handleMode)
	srv.Register(hostcmd.EC_CMD_FP_INFO, hostcmd.VersionMask(0)|hostcmd.VersionMask(1), s.handleInfo)
	srv.Register(hostcmd.EC_CMD_FP_FRAME, hostcmd.VersionMask(0), s.handleFrame)
	srv.Register(hostcmd.EC_CMD_FP_TEMPLATE, hostcmd.VersionMask(0), s.handleTemplate)
	srv.Register(hostcmd.EC_CMD_FP_CONTEXT, hostcmd.VersionMask(0), s.handleContext)
	srv.Register(hostcmd.EC_CMD_FP_STATS, hostcmd.VersionMask(0), s.handleStats)
	srv.Register(hostcmd.EC_CMD_FP_SEED, hostcmd.VersionMask(0), s.handleSeed)
	srv.Register(hostcmd.EC_CMD_GET_NEXT_EVENT, hostcmd.VersionMask(0), s.handleNextEvent)
}

// Info describes the sensor. Version 1 adds the template store fields.
func (s *Sensor) Info(version uint8) (*fptypes.FPInfoResponse, error) {
	info, err := s.driver.Info()
	if err != nil {
		return nil, newErrorMessage(ErrUnavailable, err.Error())
	}

	resp := &fptypes.FPInfoResponse{
		VendorID:    info.VendorID,
		ProductID:   info.ProductID,
		ModelID:     info.ModelID,
		Version:     info.Version,
		FrameSize:   uint32(s.geometry.FrameSize),
		PixelFormat: info.PixelFormat,
		Width:       s.geometry.Width,
		Height:      s.geometry.Height,
		BPP:         s.geometry.BPP,
		Errors:      info.Errors,
	}
	if version == 0 {
		return resp, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp.TemplateSize = uint32(fptypes.EncryptedTemplateSize(s.geometry.TemplateSize))
	resp.TemplateMax = uint16(s.store.capacity())
	resp.TemplateValid = uint16(s.store.valid)
	resp.TemplateDirty = s.store.dirty
	resp.TemplateVersion = uint32(fptypes.TemplateFormatVersion)
	if s.contextID != uuid.Nil {
		resp.ContextID = s.contextID[:]
	}

	return resp, nil
}

// Passthru sends raw bytes to the sensor and returns what it sent back.
// Only unlocked devices accept it.
func (s *Sensor) Passthru(req *fptypes.FPPassthruRequest) ([]byte, error) {
	return s.passthru(req, s.responseMax)
}

func (s *Sensor) passthru(req *fptypes.FPPassthruRequest, responseMax int) ([]byte, error) {
	if s.locked() {
		return nil, newErrorMessage(ErrAccessDenied, "passthrough is not available on locked devices")
	}
	if int(req.Len) > len(req.Data) || int(req.Len) > responseMax {
		return nil, newErrorMessage(ErrInvalidParam, "passthrough length out of bounds")
	}
	if s.transport == nil {
		return nil, newErrorMessage(ErrUnavailable, "no sensor transport")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rx := make([]byte, req.Len)
	err := s.transport.Transfer(req.Data[:req.Len], rx)
	if err == nil {
		if req.Flags&fptypes.PassthruNotComplete != 0 {
			err = s.transport.Wait()
		} else {
			err = s.transport.Flush()
		}
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return nil, newErrorMessage(ErrTimeout, err.Error())
	case err != nil:
		return nil, newErrorMessage(ErrInternal, err.Error())
	}

	return rx, nil
}

func (s *Sensor) handlePassthru(req *hostcmd.Request) (any, error) {
	var params fptypes.FPPassthruRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	data, err := s.passthru(&params, req.ResponseMax)
	if err != nil {
		return nil, err
	}

	return &fptypes.FPPassthruResponse{Data: data}, nil
}

func (s *Sensor) handleMode(req *hostcmd.Request) (any, error) {
	var params fptypes.FPModeRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	mode, err := s.SetMode(params.Mode)
	if err != nil {
		return nil, err
	}

	return &fptypes.FPModeResponse{Mode: mode}, nil
}

func (s *Sensor) handleInfo(req *hostcmd.Request) (any, error) {
	return s.Info(req.Version)
}

func (s *Sensor) handleFrame(req *hostcmd.Request) (any, error) {
	var params fptypes.FPFrameRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	data, err := s.readFrame(params.Offset, params.Size, req.ResponseMax)
	if err != nil {
		return nil, err
	}

	return &fptypes.FPFrameResponse{Data: data}, nil
}

func (s *Sensor) handleTemplate(req *hostcmd.Request) (any, error) {
	var params fptypes.FPTemplateRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	return nil, s.WriteTemplate(params.Offset, params.Size, params.Data)
}

func (s *Sensor) handleContext(req *hostcmd.Request) (any, error) {
	var params fptypes.FPContextRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	return nil, s.SetContext(params.UserID)
}

func (s *Sensor) handleStats(_ *hostcmd.Request) (any, error) {
	stats := s.Stats()
	return &stats, nil
}

func (s *Sensor) handleSeed(req *hostcmd.Request) (any, error) {
	var params fptypes.FPSeedRequest
	if err := req.Decode(&params); err != nil {
		return nil, err
	}

	return nil, s.SetSeed(params.StructVersion, params.Seed)
}

func (s *Sensor) handleNextEvent(_ *hostcmd.Request) (any, error) {
	evt := s.NextEvent()
	if evt == 0 {
		return nil, newErrorMessage(ErrUnavailable, "no pending event")
	}

	return &fptypes.GetNextEventResponse{
		EventType: fptypes.MKBPEventFingerprint,
		Data:      uint32(evt),
	}, nil
}
