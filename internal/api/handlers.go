// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/flowatlas/flowatlas/internal/cluster"
	"github.com/flowatlas/flowatlas/internal/config"
	"github.com/flowatlas/flowatlas/internal/derived"
	"github.com/flowatlas/flowatlas/internal/ingest"
	"github.com/flowatlas/flowatlas/internal/logging"
	"github.com/flowatlas/flowatlas/internal/models"
)

// Handler implements the HTTP endpoints over the dataset registry.
type Handler struct {
	registry *Registry
	apiCfg   config.APIConfig
	engCfg   config.EngineConfig
	started  time.Time
}

// NewHandler creates a handler serving datasets from the registry.
func NewHandler(registry *Registry, apiCfg config.APIConfig, engCfg config.EngineConfig) *Handler {
	return &Handler{
		registry: registry,
		apiCfg:   apiCfg,
		engCfg:   engCfg,
		started:  time.Now(),
	}
}

func (h *Handler) engineOptions() derived.Options {
	return derived.Options{
		Cluster: cluster.Options{
			MaxZoom:  h.engCfg.ClusterMaxZoom,
			RadiusPx: h.engCfg.ClusterRadiusPx,
		},
		MaxTopFlows:   h.engCfg.MaxTopFlows,
		ViewportPadPx: h.engCfg.ViewportPadPx,
		ViewCacheSize: h.engCfg.ViewCacheSize,
		ViewCacheTTL:  h.engCfg.ViewCacheTTL,
	}
}

type datasetLocation struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type datasetFlow struct {
	Origin string  `json:"origin"`
	Dest   string  `json:"dest"`
	Count  float64 `json:"count"`
	Time   string  `json:"time,omitempty"`
	Color  string  `json:"color,omitempty"`
}

type datasetRequest struct {
	Locations []datasetLocation `json:"locations"`
	Flows     []datasetFlow     `json:"flows"`
}

type datasetResponse struct {
	DatasetID    string         `json:"datasetId"`
	Hash         string         `json:"hash"`
	NumLocations int            `json:"numLocations"`
	NumFlows     int            `json:"numFlows"`
	ClusterZooms []int          `json:"clusterZooms"`
	Report       *ingest.Report `json:"report,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// CreateDataset ingests a dataset, builds its engine, and publishes it
// in the registry. Ingest issues are reported, never fatal: a dataset
// with some unusable rows still loads with the usable remainder.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.apiCfg.MaxDatasetBytes)
	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid dataset JSON", err)
		return
	}

	locations := make([]models.Location, len(req.Locations))
	for i, loc := range req.Locations {
		locations[i] = models.Location{ID: loc.ID, Name: loc.Name, Lat: loc.Lat, Lon: loc.Lon}
	}

	var badTimes int
	flows := make([]models.Flow, len(req.Flows))
	for i, f := range req.Flows {
		flows[i] = models.Flow{Origin: f.Origin, Dest: f.Dest, Count: f.Count, Color: f.Color}
		if f.Time == "" {
			continue
		}
		if t, ok := ingest.ParseTime(f.Time); ok {
			flows[i].Time = &t
		} else {
			badTimes++
		}
	}

	ds, report := ingest.Prepare(locations, flows)
	engine := derived.NewEngine(ds, h.engineOptions())
	h.registry.Put(engine)

	warnings := report.Warnings()
	if badTimes > 0 {
		warnings = append(warnings, fmt.Sprintf("%d flows have unparseable timestamps and load without one", badTimes))
	}

	logging.Info().
		Str("dataset_id", ds.ID).
		Int("locations", len(ds.Locations)).
		Int("flows", len(ds.Flows)).
		Int("warnings", len(warnings)).
		Msg("Dataset loaded")

	respondData(w, http.StatusCreated, datasetResponse{
		DatasetID:    ds.ID,
		Hash:         fmt.Sprintf("%016x", ds.Hash),
		NumLocations: len(ds.Locations),
		NumFlows:     len(ds.Flows),
		ClusterZooms: engine.AvailableClusterZoomLevels(),
		Report:       report,
		Warnings:     warnings,
	}, started)
}

// DeleteDataset removes a dataset from the registry.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "id")
	if !h.registry.Remove(id) {
		respondError(w, http.StatusNotFound, "DATASET_NOT_FOUND", "no dataset with that id", nil)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"datasetId": id}, started)
}

// ListDatasets returns the registered dataset IDs.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondData(w, http.StatusOK, map[string][]string{"datasets": h.registry.IDs()}, started)
}

func (h *Handler) engineFor(w http.ResponseWriter, r *http.Request) (*derived.Engine, bool) {
	id := chi.URLParam(r, "id")
	engine, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "DATASET_NOT_FOUND", "no dataset with that id", nil)
		return nil, false
	}
	return engine, true
}

// viewStateFromQuery decodes the renderer state from query parameters.
func viewStateFromQuery(r *http.Request) (derived.ViewState, error) {
	q := r.URL.Query()

	state := derived.ViewState{
		ViewportWidth:         getIntParam(r, "width", 0),
		ViewportHeight:        getIntParam(r, "height", 0),
		CenterLon:             getFloatParam(r, "lon", 0),
		CenterLat:             getFloatParam(r, "lat", 0),
		Zoom:                  getFloatParam(r, "zoom", 0),
		ClusteringEnabled:     getBoolParam(r, "clustering", true),
		AdaptiveScalesEnabled: getBoolParam(r, "adaptiveScales", false),
		FilterMode:            models.FilterModeAll,
	}

	if raw := q.Get("clusterZoom"); raw != "" {
		z := getIntParam(r, "clusterZoom", 0)
		state.ManualClusterZoom = &z
	}
	if raw := q.Get("selected"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				state.SelectedIDs = append(state.SelectedIDs, id)
			}
		}
	}
	if raw := q.Get("filterMode"); raw != "" {
		mode := models.FilterMode(strings.ToUpper(raw))
		if !mode.Valid() {
			return state, fmt.Errorf("unknown filter mode %q", raw)
		}
		state.FilterMode = mode
	}

	startRaw, endRaw := q.Get("timeStart"), q.Get("timeEnd")
	if (startRaw == "") != (endRaw == "") {
		return state, fmt.Errorf("timeStart and timeEnd must be given together")
	}
	if startRaw != "" {
		start, ok := ingest.ParseTime(startRaw)
		if !ok {
			return state, fmt.Errorf("unparseable timeStart %q", startRaw)
		}
		end, ok := ingest.ParseTime(endRaw)
		if !ok {
			return state, fmt.Errorf("unparseable timeEnd %q", endRaw)
		}
		if end.Before(start) {
			return state, fmt.Errorf("timeEnd precedes timeStart")
		}
		state.TimeRange = &derived.TimeRange{Start: start, End: end}
	}
	return state, nil
}

// View evaluates and returns the derived view for the query-encoded state.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	state, err := viewStateFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_STATE", err.Error(), nil)
		return
	}
	respondData(w, http.StatusOK, engine.View(state), started)
}

// ClusterZooms returns the zoom levels the dataset's hierarchy has.
func (h *Handler) ClusterZooms(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, map[string][]int{
		"clusterZooms": engine.AvailableClusterZoomLevels(),
	}, started)
}

// ExpandCluster lists the leaf locations inside a cluster node.
func (h *Handler) ExpandCluster(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	clusterID := chi.URLParam(r, "clusterID")
	if _, found := engine.ClusterIndex().ClusterByID(clusterID); !found {
		respondError(w, http.StatusNotFound, "CLUSTER_NOT_FOUND", "no node with that id", nil)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"clusterId": clusterID,
		"locations": engine.ClusterIndex().ExpandCluster(clusterID),
	}, started)
}

// Search matches the query against location display names and IDs,
// case-insensitively, and returns up to the configured result cap.
// Prefix matches rank above substring matches.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	engine, ok := h.engineFor(w, r)
	if !ok {
		return
	}

	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	matches := make([]derived.SearchItem, 0, h.apiCfg.MaxSearchResults)
	for _, item := range engine.SearchItems() {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(item.ID), query) {
			continue
		}
		matches = append(matches, item)
		if len(matches) >= h.apiCfg.MaxSearchResults {
			break
		}
	}
	if query != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			pi := strings.HasPrefix(strings.ToLower(matches[i].Name), query)
			pj := strings.HasPrefix(strings.ToLower(matches[j].Name), query)
			return pi && !pj
		})
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"items": matches,
	}, started)
}

// Health reports process liveness and registry size.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"datasets": h.registry.Len(),
		"uptime":   time.Since(h.started).String(),
	}, started)
}
