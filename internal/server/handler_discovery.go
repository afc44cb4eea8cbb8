package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "Timetable API",
		Version:     "v1",
		Description: "Weekly class timetables with instructor conflict checks, auto-fill and publishing",
		Endpoints: []endpointInfo{
			{"/api/v1/calendar", []string{"GET"}, "Period calendar shared by every class group"},
			{"/api/v1/instructors", []string{"GET"}, "Instructor directory"},
			{"/api/v1/terms/{term}/grids", []string{"GET"}, "List class group grids of a term. Accepts ?status=draft|published"},
			{"/api/v1/terms/{term}/grids/{class}", []string{"GET"}, "Load one grid"},
			{"/api/v1/terms/{term}/grids/{class}/unpublish", []string{"POST"}, "Return a published grid to draft"},
			{"/api/v1/terms/{term}/grids/{class}/export.xlsx", []string{"GET"}, "Download one grid as a spreadsheet"},
			{"/api/v1/terms/{term}/export.xlsx", []string{"GET"}, "Download every grid of a term, one sheet each"},
			{"/api/v1/terms/{term}/import.xlsx", []string{"POST"}, "Upload a workbook in the export layout and save its sheets as grids. Accepts ?publish=true"},
			{"/api/v1/terms/{term}/edits", []string{"POST"}, "Apply slot edits to a set of grids and return conflict advisories"},
			{"/api/v1/terms/{term}/conflicts/check", []string{"POST"}, "Two-tier conflict check of one instructor placement"},
			{"/api/v1/terms/{term}/autofill", []string{"POST"}, "Generate draft grids from subjects and instructors"},
			{"/api/v1/terms/{term}/batch/save", []string{"POST"}, "Save several grids concurrently"},
			{"/api/v1/terms/{term}/batch/publish", []string{"POST"}, "Publish several grids through the conflict gate"},
			{"/api/v1/events", []string{"GET"}, "Server-Sent Events stream of publish and unpublish events"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
