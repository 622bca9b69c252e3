// Package validation holds the size limits enforced at the HTTP trust
// boundary and the helpers that report them as validation errors.
package validation

import (
	"fmt"

	dErrors "attesto/pkg/domain-errors"
)

// MaxBodySize bounds request bodies. Presentations embed whole credentials,
// so this is larger than a plain JSON API needs.
const MaxBodySize = 1 << 20

const (
	MaxInputDescriptors = 32
	MaxFieldsPerInput   = 32
	MaxTrustedIssuers   = 64
	MaxGuardians        = 16
)

const (
	MaxPassphraseLength = 1024
	MaxDIDLength        = 2048
	MaxChallengeLength  = 512
)

// CheckSliceCount fails when count exceeds max.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength fails when value is longer than max bytes.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength applies CheckStringLength to every element.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if err := CheckStringLength(fieldName, v, max); err != nil {
			return err
		}
	}
	return nil
}
