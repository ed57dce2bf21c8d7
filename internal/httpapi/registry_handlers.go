package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/registry"
)

type createPointRequest struct {
	Code       string `json:"code"`
	RegionName string `json:"region_name"`
	ZoneName   string `json:"zone_name"`
	PointName  string `json:"point_name"`
	Type       string `json:"type"`
	IsActive   *bool  `json:"is_active"`
}

type setActiveRequest struct {
	Active  *bool `json:"active"`
	Version int64 `json:"version"`
}

type assignOccupantRequest struct {
	OccupantID   string `json:"occupant_id"`
	OccupantName string `json:"occupant_name"`
	Version      int64  `json:"version"`
}

type provisionRequest struct {
	ZonePrefix     string `json:"zone_prefix"`
	FloorStart     int    `json:"floor_start"`
	FloorEnd       int    `json:"floor_end"`
	PointsPerFloor int    `json:"points_per_floor"`
	Scheme         string `json:"scheme"`
	Type           string `json:"type"`
	RegionName     string `json:"region_name"`
	ZoneName       string `json:"zone_name"`
}

type provisionResponse struct {
	Items []registry.DeliveryPoint `json:"items"`
	Count int                      `json:"count"`
}

func (a *API) handlePointsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPoint(w, r)
	case http.MethodGet:
		a.queryPoints(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePointResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/points/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if code, ok := strings.CutSuffix(path, "/active"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setActive(w, r, code)
		return
	}

	if code, ok := strings.CutSuffix(path, "/occupant"); ok {
		switch r.Method {
		case http.MethodPost:
			a.assignOccupant(w, r, code)
		case http.MethodDelete:
			a.vacate(w, r, code)
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		}
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getPoint(w, r, path)
	case http.MethodDelete:
		a.deletePoint(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) createPoint(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	var req createPointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := a.svc.Create(r.Context(), actor, registry.CreateInput{
		Code:       req.Code,
		RegionName: req.RegionName,
		ZoneName:   req.ZoneName,
		PointName:  req.PointName,
		Type:       registry.PointType(req.Type),
		IsActive:   active,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getPoint(w http.ResponseWriter, r *http.Request, code string) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	p, err := a.svc.Get(r.Context(), actor, code)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePoint(w http.ResponseWriter, r *http.Request, code string) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	if err := a.svc.Delete(r.Context(), actor, code); err != nil {
		handleRegistryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request, code string) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "active is required")
		return
	}
	p, err := a.svc.SetActive(r.Context(), actor, code, *req.Active, req.Version)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) assignOccupant(w http.ResponseWriter, r *http.Request, code string) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	var req assignOccupantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.svc.AssignOccupant(r.Context(), actor, code, req.OccupantID, req.OccupantName, req.Version)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) vacate(w http.ResponseWriter, r *http.Request, code string) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "version query parameter is required")
		return
	}
	p, err := a.svc.Vacate(r.Context(), actor, code, version)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) queryPoints(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	in := registry.QueryInput{
		Prefix:     q.Get("prefix"),
		TextSearch: q.Get("q"),
		After:      q.Get("after"),
	}
	if raw := q.Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "active must be a boolean")
			return
		}
		in.IsActive = &v
	}
	if raw := q.Get("occupied"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "occupied must be a boolean")
			return
		}
		in.Occupied = &v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		in.Limit = v
	}
	page, err := a.svc.Query(r.Context(), actor, in)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []registry.DeliveryPoint{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleProvision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.requireProfile(w, r)
	if !ok {
		return
	}
	var req provisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inserted, err := a.svc.ProvisionBatch(r.Context(), actor, registry.Plan{
		ZonePrefix:     address.Prefix(strings.ToUpper(strings.TrimSpace(req.ZonePrefix))),
		FloorStart:     req.FloorStart,
		FloorEnd:       req.FloorEnd,
		PointsPerFloor: req.PointsPerFloor,
		Scheme:         registry.NumberingScheme(req.Scheme),
		Type:           registry.PointType(req.Type),
		RegionName:     req.RegionName,
		ZoneName:       req.ZoneName,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, provisionResponse{Items: inserted, Count: len(inserted)})
}

// --- error mapping and body handling ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	var pc *registry.PartialConflictError
	var denied *registry.DeniedError
	switch {
	case errors.As(err, &pc):
		codes := make([]string, len(pc.Codes))
		for i, c := range pc.Codes {
			codes[i] = c.String()
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           "batch collides with existing codes",
			"colliding_codes": codes,
			"request_id":      RequestIDFromContext(r.Context()),
		})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":      denied.Error(),
			"capability": string(denied.Capability),
			"reason":     string(denied.Reason),
			"request_id": RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, address.ErrInvalidFormat), errors.Is(err, registry.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrStaleVersion):
		writeError(w, r, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, registry.ErrConflict), errors.Is(err, registry.ErrAlreadyOccupied), errors.Is(err, registry.ErrNotOccupied):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
