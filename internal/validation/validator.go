package validation

import (
	"github.com/devrev/hotcache/internal/errors"
)

const (
	// Size limits
	MaxKeySize   = 1024             // 1 KB
	MaxValueSize = 10 * 1024 * 1024 // 10 MB

	// TagSize is the fixed width of the tag suffix on an internal key
	TagSize = 8
)

// Validator validates cache operations at the service boundary
type Validator struct {
	maxKeySize   int
	maxValueSize int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxKeySize:   MaxKeySize,
		maxValueSize: MaxValueSize,
	}
}

// NewValidatorWithLimits creates a validator with custom limits
func NewValidatorWithLimits(maxKeySize, maxValueSize int) *Validator {
	v := NewValidator()
	if maxKeySize > 0 {
		v.maxKeySize = maxKeySize
	}
	if maxValueSize > 0 {
		v.maxValueSize = maxValueSize
	}
	return v
}

// ValidateInternalKey checks a promote-boundary key: user key bytes
// followed by the 8-byte tag
func (v *Validator) ValidateInternalKey(internalKey []byte) error {
	if len(internalKey) < TagSize {
		return errors.InvalidInternalKey(len(internalKey))
	}
	userKeySize := len(internalKey) - TagSize
	if userKeySize == 0 {
		return errors.EmptyKey()
	}
	if userKeySize > v.maxKeySize {
		return errors.KeyTooLarge(userKeySize, v.maxKeySize)
	}
	return nil
}

// ValidateUserKey checks an update-boundary user key
func (v *Validator) ValidateUserKey(userKey []byte) error {
	if len(userKey) == 0 {
		return errors.EmptyKey()
	}
	if len(userKey) > v.maxKeySize {
		return errors.KeyTooLarge(len(userKey), v.maxKeySize)
	}
	return nil
}

// ValidateValue checks value bytes on either boundary
func (v *Validator) ValidateValue(value []byte) error {
	if len(value) > v.maxValueSize {
		return errors.ValueTooLarge(len(value), v.maxValueSize)
	}
	return nil
}
