package fpsensor

import (
	"errors"
	"io"

	"github.com/go-ctap/fpmcu/pkg/crypto"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/google/uuid"
)

// validateBufferOffset checks that [offset, offset+size) lies inside a
// buffer of bufferSize bytes.
func validateBufferOffset(bufferSize int, offset, size uint32) error {
	capacity := uint64(bufferSize)
	if uint64(size) > capacity || uint64(offset) > capacity || uint64(size)+uint64(offset) > capacity {
		return newErrorMessage(ErrInvalidParam, "buffer range out of bounds")
	}
	return nil
}

// SetContext clears every template and buffer and starts a new user context.
func (s *Sensor) SetContext(userID []byte) error {
	if len(userID) != fptypes.ContextUserIDBytes {
		return newErrorMessage(ErrInvalidParam, "invalid user id size")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearContext()
	copy(s.userID[:], userID)
	s.contextID = uuid.New()

	s.logger.Info("fingerprint context set", "context", s.contextID)

	return nil
}

// SetSeed installs the TPM seed used for key derivation. It can only be
// set once.
func (s *Sensor) SetSeed(version uint16, seed []byte) error {
	if version != fptypes.TemplateFormatVersion {
		s.logger.Warn("invalid seed struct version", "version", version)
		return newErrorMessage(ErrInvalidParam, "seed struct version mismatch")
	}

	if err := s.deriver.SetSeed(seed); err != nil {
		switch {
		case errors.Is(err, crypto.ErrSeedAlreadySet):
			return newErrorMessage(ErrAccessDenied, "seed already set")
		default:
			return newErrorMessage(ErrInvalidParam, err.Error())
		}
	}

	return nil
}

// ReadFrame returns a chunk of the raw frame or of an encrypted template.
// The first chunk of a template (offset 0) encrypts it into the export
// buffer and clears its dirty bit.
func (s *Sensor) ReadFrame(offset, size uint32) ([]byte, error) {
	return s.readFrame(offset, size, s.responseMax)
}

func (s *Sensor) readFrame(offset, size uint32, responseMax int) ([]byte, error) {
	idx, offset := fptypes.FrameIndex(offset)

	if uint64(size) > uint64(responseMax) {
		return nil, newErrorMessage(ErrInvalidParam, "response too large")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx == fptypes.FrameIndexRawImage {
		if s.locked() {
			return nil, newErrorMessage(ErrAccessDenied, "raw frames are not available on locked devices")
		}

		if !s.Mode().IsRawCapture() {
			offset += uint32(s.geometry.ImageOffset)
		}
		if err := validateBufferOffset(len(s.frame), offset, size); err != nil {
			return nil, err
		}

		return append([]byte(nil), s.frame[offset:offset+size]...), nil
	}

	finger := int(idx - fptypes.FrameIndexTemplate)
	if finger >= s.store.capacity() {
		return nil, newErrorMessage(ErrInvalidParam, "template index out of range")
	}
	if finger >= s.store.valid {
		return nil, newErrorMessage(ErrUnavailable, "template slot empty")
	}
	if err := validateBufferOffset(len(s.encrypted), offset, size); err != nil {
		return nil, err
	}

	if offset == 0 {
		if err := s.encryptTemplate(finger); err != nil {
			return nil, err
		}
	}

	return append([]byte(nil), s.encrypted[offset:offset+size]...), nil
}

// encryptTemplate seals template finger into the export buffer. Callers hold s.mu.
func (s *Sensor) encryptTemplate(finger int) error {
	now := s.clock()
	if now.Before(s.encryptionDeadline) {
		s.logger.Warn("template encryption rate limited", "finger", finger)
		return newErrorMessage(ErrBusy, "encryption rate limited")
	}
	s.encryptionDeadline = now.Add(s.encryptionInterval)

	clear(s.encrypted)

	meta := fptypes.EncryptionMetadata{StructVersion: fptypes.TemplateFormatVersion}
	if _, err := io.ReadFull(s.rand, meta.Nonce[:]); err != nil {
		return newErrorMessage(ErrInternal, "cannot generate nonce")
	}
	if _, err := io.ReadFull(s.rand, meta.Salt[:]); err != nil {
		return newErrorMessage(ErrInternal, "cannot generate salt")
	}

	key, err := s.deriver.DeriveKey(meta.Salt[:], s.userID[:])
	if err != nil {
		s.logger.Error("cannot derive template key", "err", err)
		return newErrorMessage(ErrKeyDerivation, err.Error())
	}
	defer clear(key)

	ciphertext := s.encrypted[fptypes.EncryptionMetadataSize:]
	if err := crypto.SealTemplate(ciphertext, meta.Tag[:], key, meta.Nonce[:], s.store.slot(finger)); err != nil {
		clear(s.encrypted)
		s.logger.Error("cannot encrypt template", "finger", finger, "err", err)
		return newErrorMessage(ErrEncryptFailed, err.Error())
	}
	if err := meta.MarshalTo(s.encrypted); err != nil {
		clear(s.encrypted)
		return newErrorMessage(ErrEncryptFailed, err.Error())
	}

	s.store.clearDirty(finger)

	return nil
}

// WriteTemplate stores a chunk of an encrypted template into the upload
// buffer. With commit set, the template is decrypted into the next free
// slot.
func (s *Sensor) WriteTemplate(offset uint32, size uint32, data []byte) error {
	commit := size&fptypes.TemplateCommit != 0
	size &^= fptypes.TemplateCommit

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.full() {
		return newErrorMessage(ErrOverflow, "no free template slot")
	}
	if uint64(len(data)) != uint64(size) {
		return newErrorMessage(ErrInvalidParam, "chunk size mismatch")
	}
	if err := validateBufferOffset(len(s.encrypted), offset, size); err != nil {
		return err
	}
	copy(s.encrypted[offset:], data)

	if !commit {
		return nil
	}

	return s.decryptTemplate(s.store.next())
}

// decryptTemplate opens the upload buffer into slot idx. Callers hold s.mu.
func (s *Sensor) decryptTemplate(idx int) error {
	s.store.clearSlot(idx)

	var meta fptypes.EncryptionMetadata
	if err := meta.UnmarshalBinary(s.encrypted); err != nil {
		return newErrorMessage(ErrInvalidParam, err.Error())
	}
	if meta.StructVersion != fptypes.TemplateFormatVersion {
		s.logger.Warn("unsupported template format", "version", meta.StructVersion)
		return ErrInvalidTemplateFormat
	}

	key, err := s.deriver.DeriveKey(meta.Salt[:], s.userID[:])
	if err != nil {
		s.logger.Error("cannot derive template key", "err", err)
		return newErrorMessage(ErrKeyDerivation, err.Error())
	}
	defer clear(key)

	ciphertext := s.encrypted[fptypes.EncryptionMetadataSize:]
	if err := crypto.OpenTemplate(s.store.slot(idx), key, meta.Nonce[:], ciphertext, meta.Tag[:]); err != nil {
		s.store.clearSlot(idx)
		s.logger.Warn("cannot decrypt template", "finger", idx, "err", err)
		return newErrorMessage(ErrDecryptFailed, err.Error())
	}

	s.store.commit()
	s.logger.Debug("template installed", "finger", idx, "valid", s.store.valid)

	return nil
}
