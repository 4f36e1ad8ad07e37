package fptypes

import (
	"encoding/binary"
	"errors"
)

// EncryptionMetadata is stored at the beginning of an encrypted template.
// The layout is fixed little-endian so that exported templates remain
// readable across firmware updates.
type EncryptionMetadata struct {
	StructVersion uint16
	Reserved      uint16
	Nonce         [ContextNonceBytes]byte
	Salt          [ContextSaltBytes]byte
	Tag           [ContextTagBytes]byte
}

// EncryptionMetadataSize is the encoded size of EncryptionMetadata.
const EncryptionMetadataSize = 2 + 2 + ContextNonceBytes + ContextSaltBytes + ContextTagBytes

var ErrShortMetadata = errors.New("fptypes: buffer too short for encryption metadata")

// MarshalTo writes the metadata into the first EncryptionMetadataSize bytes of b.
func (m *EncryptionMetadata) MarshalTo(b []byte) error {
	if len(b) < EncryptionMetadataSize {
		return ErrShortMetadata
	}
	_, err := binary.Encode(b, binary.LittleEndian, m)
	return err
}

// UnmarshalBinary reads the metadata from the start of b.
func (m *EncryptionMetadata) UnmarshalBinary(b []byte) error {
	if len(b) < EncryptionMetadataSize {
		return ErrShortMetadata
	}
	_, err := binary.Decode(b, binary.LittleEndian, m)
	return err
}

// EncryptedTemplateSize is the size of the envelope for a template of the given size.
func EncryptedTemplateSize(templateSize int) int {
	return EncryptionMetadataSize + templateSize
}
