package models

import "time"

// Project bundles the process, the API contract and their latest mapping.
type Project struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	BPMNXML       string         `json:"bpmnXml"`
	OpenAPIJSON   string         `json:"openApiJson"`
	PumlContent   string         `json:"pumlContent,omitempty"`
	MappingResult *MappingResult `json:"mappingResult,omitempty"`
}
