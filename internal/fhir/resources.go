// Package fhir maps converted artifacts to the clinical-metadata registry
// resources (R4B subset) and uploads them.
package fhir

// Identifier systems used by the converter (see the FHIR identifier
// registry: urn:uuid for UUIDs, urn:dicom:uid for DICOM OIDs).
const (
	systemUUID     = "urn:uuid"
	systemDicomUID = "urn:dicom:uid"
	systemDCM      = "http://dicom.nema.org/resources/ontology/DCM"

	endpointConnectionSystem = "http://terminology.hl7.org/CodeSystem/endpoint-connection-type"
	endpointConnectionCode   = "dicom-wado-rs"
)

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Coding struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
}

type HumanName struct {
	Given []string `json:"given,omitempty"`
}

// Endpoint is contained in the ImagingStudy and carries the WADO-RS
// retrieval address derived from the business identifier.
type Endpoint struct {
	ResourceType   string            `json:"resourceType"`
	ID             string            `json:"id,omitempty"`
	Status         string            `json:"status"`
	ConnectionType Coding            `json:"connectionType"`
	PayloadType    []CodeableConcept `json:"payloadType"`
	Address        string            `json:"address"`
}

type Patient struct {
	ResourceType string       `json:"resourceType"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	BirthDate    string       `json:"birthDate,omitempty"`
	Active       bool         `json:"active"`
}

type SeriesInstance struct {
	UID      string `json:"uid"`
	SOPClass Coding `json:"sopClass"`
	Number   int    `json:"number,omitempty"`
}

type Series struct {
	UID      string           `json:"uid"`
	Number   int              `json:"number,omitempty"`
	Modality Coding           `json:"modality"`
	Endpoint []Reference      `json:"endpoint,omitempty"`
	Instance []SeriesInstance `json:"instance,omitempty"`
}

type ImagingStudy struct {
	ResourceType      string       `json:"resourceType"`
	Status            string       `json:"status"`
	Identifier        []Identifier `json:"identifier,omitempty"`
	Modality          []Coding     `json:"modality,omitempty"`
	Subject           Reference    `json:"subject"`
	Contained         []Endpoint   `json:"contained,omitempty"`
	Endpoint          []Reference  `json:"endpoint,omitempty"`
	NumberOfSeries    int          `json:"numberOfSeries,omitempty"`
	NumberOfInstances int          `json:"numberOfInstances,omitempty"`
	Series            []Series     `json:"series,omitempty"`
}

// bundle is the wire shape of a registry search response; only the fields
// needed to build a reference are decoded.
type bundle struct {
	Entry []struct {
		Resource struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		} `json:"resource"`
	} `json:"entry"`
}
