// Package gate guards the imaging archive's DICOMweb surface. Every
// request is introspected against the identity provider and allowed
// through only when the caller holds a role covering the requested study.
package gate

import (
	"strings"

	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/internal/dicomuid"
)

// Credential is the result of introspecting a bearer token.
type Credential struct {
	Active bool
	Roles  []string
}

func (c *Credential) hasRole(name string) bool {
	for _, role := range c.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// Decide returns whether the credential may access the given request path.
// Inactive or missing credentials are always rejected. The uploader and
// admin roles cover every path; everyone else needs the study role matching
// the job identifier recovered from the StudyInstanceUID in the path.
func Decide(path string, cred *Credential, roles config.Roles) bool {
	if cred == nil || !cred.Active {
		return false
	}
	if cred.hasRole(roles.Uploader) || cred.hasRole(roles.Admin) {
		return true
	}

	studyUID, ok := studyUIDFromPath(path)
	if !ok {
		return false
	}
	businessID, err := dicomuid.BusinessIDFromStudyUID(studyUID)
	if err != nil {
		return false
	}
	return cred.hasRole(roles.StudyPrefix + businessID.String())
}

// studyUIDFromPath finds the path segment following "studies", which is
// where DICOMweb carries the StudyInstanceUID.
func studyUIDFromPath(path string) (string, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if segment == "studies" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}
