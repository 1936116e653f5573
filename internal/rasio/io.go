package rasio

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReadJSON reads and unmarshals the document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed from the reach data layout
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %q: %w", path, err)
	}

	return nil
}

// WriteJSON marshals v and writes it to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document for %q: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	return nil
}

// ReadProject reads a source model's project document.
func ReadProject(path string) (*ProjectDocument, error) {
	var doc ProjectDocument
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// WriteProject writes a source model's project document.
func WriteProject(path string, doc *ProjectDocument) error {
	return WriteJSON(path, doc)
}

// ReadGeometry reads a geometry document.
func ReadGeometry(path string) (*GeometryDocument, error) {
	var doc GeometryDocument
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// WriteGeometry writes a geometry document.
func WriteGeometry(path string, doc *GeometryDocument) error {
	return WriteJSON(path, doc)
}

// ReadPlan reads a plan document.
func ReadPlan(path string) (*PlanDocument, error) {
	var doc PlanDocument
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// WritePlan writes a plan document.
func WritePlan(path string, doc *PlanDocument) error {
	return WriteJSON(path, doc)
}

// ReadFlow reads a flow document.
func ReadFlow(path string) (*FlowDocument, error) {
	var doc FlowDocument
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// WriteFlow writes a flow document.
func WriteFlow(path string, doc *FlowDocument) error {
	return WriteJSON(path, doc)
}

// ReadGeoPackage reads a geopackage document.
func ReadGeoPackage(path string) (*GeoPackageDocument, error) {
	var doc GeoPackageDocument
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// WriteGeoPackage writes a geopackage document.
func WriteGeoPackage(path string, doc *GeoPackageDocument) error {
	return WriteJSON(path, doc)
}
