// Package dicomuid maps the random job identifier (a UUID) into the DICOM
// UID space and back. The mapping is the decimal rendering of the UUID's
// 128-bit value, so encoding and decoding are exact inverses for every
// valid identifier. The access gate relies on this bijection to recover a
// job identifier from a StudyInstanceUID at request time.
package dicomuid

import (
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// OrgRoot is the UID root for UUID-derived UIDs (ISO/IEC 9834-8).
const OrgRoot = "2.25."

var ErrMalformedUID = errors.New("malformed dicom uid")

var maxUUID = new(big.Int).Lsh(big.NewInt(1), 128)

// Encode renders the 128-bit identifier as a decimal string.
func Encode(id uuid.UUID) string {
	return new(big.Int).SetBytes(id[:]).String()
}

// Decode is the inverse of Encode. It fails with ErrMalformedUID unless the
// input is a decimal integer representable in 128 bits.
func Decode(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, ErrMalformedUID
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.Cmp(maxUUID) >= 0 {
		return uuid.Nil, ErrMalformedUID
	}

	var buf [16]byte
	n.FillBytes(buf[:])
	return uuid.FromBytes(buf[:])
}

// StudyUID derives the StudyInstanceUID for a job.
func StudyUID(id uuid.UUID) string {
	return OrgRoot + Encode(id)
}

// SeriesUID derives the SeriesInstanceUID for a job. Every job produces
// exactly one series, numbered 1.
func SeriesUID(id uuid.UUID) string {
	return StudyUID(id) + ".1"
}

// BusinessIDFromStudyUID recovers the job identifier from a StudyInstanceUID
// produced by StudyUID.
func BusinessIDFromStudyUID(studyUID string) (uuid.UUID, error) {
	if !strings.HasPrefix(studyUID, OrgRoot) {
		return uuid.Nil, ErrMalformedUID
	}
	return Decode(strings.TrimPrefix(studyUID, OrgRoot))
}
