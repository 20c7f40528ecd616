package tripsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/TripFlow/internal/engine"
	"github.com/BearBump/TripFlow/internal/models"
	"github.com/BearBump/TripFlow/internal/services/trips"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	CompactTrip(ctx context.Context, tripUID string) (*models.CompactTrip, error)
	ExpandedTrip(ctx context.Context, tripUID string) (*models.TripWithTransportData, error)
	VisibleActivities(ctx context.Context, tripUID string, collapsed []string) ([]models.SimilarActivityWithTransportData, error)
	RelatedActivities(ctx context.Context, tripUID, activityUID string) ([]models.SimilarActivityWithTransportData, error)
	CheckReorder(ctx context.Context, tripUID string, source, destination int) (engine.ReorderVerdict, error)
	Reorder(ctx context.Context, tripUID string, req trips.ReorderRequest) (engine.ReorderResult, error)
	CanInsertBreak(ctx context.Context, tripUID string, index int) (bool, error)
	InsertBreak(ctx context.Context, tripUID string, index int) (*trips.BreakInsertion, error)
	ValidateMerge(ctx context.Context, tripUIDs []string) (engine.MergeValidation, error)
}

type TripsAPI struct {
	svc Service
}

func New(svc Service) *TripsAPI {
	return &TripsAPI{svc: svc}
}

// Register mounts the trip routes on r.
func (a *TripsAPI) Register(r chi.Router) {
	r.Route("/trips", func(r chi.Router) {
		r.Post("/merge/validate", a.validateMerge)
		r.Route("/{tripUID}", func(r chi.Router) {
			r.Get("/compact", a.getCompact)
			r.Get("/activities", a.getActivities)
			r.Get("/activities/{activityUID}/related", a.getRelated)
			r.Post("/reorder/check", a.checkReorder)
			r.Post("/reorder", a.reorder)
			r.Get("/breaks/{index}", a.canInsertBreak)
			r.Post("/breaks", a.insertBreak)
		})
	})
}

func (a *TripsAPI) getCompact(w http.ResponseWriter, r *http.Request) {
	trip, err := a.svc.CompactTrip(r.Context(), chi.URLParam(r, "tripUID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// getActivities returns the expanded trip, or only the visible activities
// when a collapsed list is given.
func (a *TripsAPI) getActivities(w http.ResponseWriter, r *http.Request) {
	tripUID := chi.URLParam(r, "tripUID")
	if _, ok := r.URL.Query()["collapsed"]; !ok {
		trip, err := a.svc.ExpandedTrip(r.Context(), tripUID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trip)
		return
	}

	acts, err := a.svc.VisibleActivities(r.Context(), tripUID, splitList(r.URL.Query()["collapsed"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
}

func (a *TripsAPI) getRelated(w http.ResponseWriter, r *http.Request) {
	acts, err := a.svc.RelatedActivities(r.Context(), chi.URLParam(r, "tripUID"), chi.URLParam(r, "activityUID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
}

type reorderRequest struct {
	Source      *int     `json:"source"`
	Destination *int     `json:"destination"`
	Collapsed   []string `json:"collapsed"`
}

func (req reorderRequest) validate() error {
	if req.Source == nil || req.Destination == nil {
		return errors.Wrap(trips.ErrInvalidArgument, "source and destination are required")
	}
	return nil
}

type verdictResponse struct {
	Legal       bool                    `json:"legal"`
	Violation   engine.ReorderViolation `json:"violation,omitempty"`
	Message     string                  `json:"message,omitempty"`
	WithinGroup bool                    `json:"within_group,omitempty"`
}

func toVerdictResponse(v engine.ReorderVerdict) verdictResponse {
	return verdictResponse{
		Legal:       v.Legal(),
		Violation:   v.Violation,
		Message:     v.Message(),
		WithinGroup: v.WithinGroup,
	}
}

func (a *TripsAPI) checkReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := a.svc.CheckReorder(r.Context(), chi.URLParam(r, "tripUID"), *req.Source, *req.Destination)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerdictResponse(v))
}

func (a *TripsAPI) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.Reorder(r.Context(), chi.URLParam(r, "tripUID"), trips.ReorderRequest{
		Source:      *req.Source,
		Destination: *req.Destination,
		Collapsed:   req.Collapsed,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": res.Changed(),
		"result":  res,
	})
}

func (a *TripsAPI) canInsertBreak(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, errors.Wrap(trips.ErrInvalidArgument, "index must be an integer"))
		return
	}
	ok, err := a.svc.CanInsertBreak(r.Context(), chi.URLParam(r, "tripUID"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": ok})
}

type insertBreakRequest struct {
	Index *int `json:"index"`
}

func (req insertBreakRequest) validate() error {
	if req.Index == nil {
		return errors.Wrap(trips.ErrInvalidArgument, "index is required")
	}
	return nil
}

func (a *TripsAPI) insertBreak(w http.ResponseWriter, r *http.Request) {
	var req insertBreakRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ins, err := a.svc.InsertBreak(r.Context(), chi.URLParam(r, "tripUID"), *req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ins)
}

type validateMergeRequest struct {
	TripUIDs []string `json:"trip_uids"`
}

func (req validateMergeRequest) validate() error {
	if len(req.TripUIDs) == 0 {
		return errors.Wrap(trips.ErrInvalidArgument, "trip_uids is required")
	}
	return nil
}

func (a *TripsAPI) validateMerge(w http.ResponseWriter, r *http.Request) {
	var req validateMergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.ValidateMerge(r.Context(), req.TripUIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type validator interface {
	validate() error
}

func decodeBody(r *http.Request, dst validator) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(trips.ErrInvalidArgument, "malformed json body")
	}
	return dst.validate()
}

// splitList accepts both ?collapsed=a&collapsed=b and ?collapsed=a,b.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string           `json:"error"`
	Verdict *verdictResponse `json:"verdict,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var rejected *trips.ReorderRejectedError
	switch {
	case errors.As(err, &rejected):
		v := toVerdictResponse(rejected.Verdict)
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Verdict: &v})
	case errors.Is(err, trips.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, trips.ErrTripNotFound), errors.Is(err, trips.ErrActivityNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, trips.ErrBreakNotAllowed), errors.Is(err, trips.ErrIllegalReorder),
		errors.Is(err, trips.ErrConcurrentChange):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, trips.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	default:
		slog.Error("trips api", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
