package fhir

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/openwsi/slideconv/internal/dicomuid"
)

// BusinessIdentifier renders a business identifier (job or patient) as a
// registry identifier.
func BusinessIdentifier(id string) Identifier {
	return Identifier{System: systemUUID, Value: "urn:uuid:" + id}
}

func studyUIDIdentifier(studyUID string) Identifier {
	return Identifier{System: systemDicomUID, Value: "urn:oid:" + studyUID}
}

func modalityCoding(modality string) Coding {
	// "SM" (Slide Microscopy) is the closest DICOM modality to WSI.
	return Coding{System: systemDCM, Code: modality}
}

func sopClassCoding(sopClassUID string) Coding {
	return Coding{System: systemDicomUID, Code: "urn:oid:" + sopClassUID}
}

// wadoEndpoint builds the contained retrieval endpoint for the study or
// its single series. The address is a pure function of the business
// identifier and the configured DICOMweb base URL.
func wadoEndpoint(kind string, businessID uuid.UUID, dicomWebURL string) Endpoint {
	address := fmt.Sprintf("%s/studies/%s/", dicomWebURL, dicomuid.StudyUID(businessID))
	if kind == "series" {
		address += fmt.Sprintf("series/%s/", dicomuid.SeriesUID(businessID))
	}
	return Endpoint{
		ResourceType:   "Endpoint",
		ID:             kind,
		Status:         "active",
		ConnectionType: Coding{System: endpointConnectionSystem, Code: endpointConnectionCode},
		// No existing payload code fits WADO-RS, so only a text is set.
		PayloadType: []CodeableConcept{{Text: "DICOM WADO-RS"}},
		Address:     address,
	}
}

// NewPatient maps the DICOM patient header fields onto a registry Patient.
func NewPatient(meta dicomfile.Meta) *Patient {
	return &Patient{
		ResourceType: "Patient",
		Identifier:   []Identifier{BusinessIdentifier(meta.PatientID)},
		Name:         []HumanName{{Given: []string{meta.PatientName}}},
		Gender:       gender(meta.PatientSex),
		BirthDate:    birthDate(meta.PatientBirthDate),
		Active:       true,
	}
}

// NewImagingStudy builds the study resource: one study, exactly one series,
// one instance entry per artifact.
func NewImagingStudy(businessID uuid.UUID, dicomWebURL string, patientRef string, metas []dicomfile.Meta) *ImagingStudy {
	instances := make([]SeriesInstance, 0, len(metas))
	for _, meta := range metas {
		instances = append(instances, SeriesInstance{
			UID:      meta.SOPInstanceUID,
			SOPClass: sopClassCoding(meta.SOPClassUID),
			Number:   meta.InstanceNumber,
		})
	}

	modality := modalityCoding(metas[0].Modality)

	return &ImagingStudy{
		ResourceType: "ImagingStudy",
		Status:       "available",
		Identifier: []Identifier{
			BusinessIdentifier(businessID.String()),
			studyUIDIdentifier(metas[0].StudyInstanceUID),
		},
		Modality: []Coding{modality},
		Subject:  Reference{Reference: patientRef, Type: "Patient"},
		Contained: []Endpoint{
			wadoEndpoint("study", businessID, dicomWebURL),
			wadoEndpoint("series", businessID, dicomWebURL),
		},
		Endpoint:          []Reference{{Reference: "#study"}},
		NumberOfSeries:    1,
		NumberOfInstances: len(metas),
		Series: []Series{{
			UID:      metas[0].SeriesInstanceUID,
			Number:   1,
			Modality: modality,
			Endpoint: []Reference{{Reference: "#series"}},
			Instance: instances,
		}},
	}
}

func gender(patientSex string) string {
	switch patientSex {
	case "M":
		return "male"
	case "F":
		return "female"
	case "O":
		return "other"
	default:
		return "unknown"
	}
}

// birthDate converts a DICOM DA value (YYYYMMDD) to a FHIR date.
func birthDate(dicomDate string) string {
	if len(dicomDate) != 8 {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", dicomDate[:4], dicomDate[4:6], dicomDate[6:])
}
