package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"i4.energy/across/nbctl/control"
)

// Server handles incoming HTTP requests for reading and writing the
// modem's controls
type Server struct {
	Logger   *slog.Logger
	Controls *Controls
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bands", s.handleGetBands)
	mux.HandleFunc("GET /bands/supported", s.handleGetSupportedBands)
	mux.HandleFunc("PUT /bands", s.handlePutBands)
	mux.HandleFunc("GET /pdp", s.handleGetPDP)
	mux.HandleFunc("POST /pdp", s.handlePostPDP)
	mux.HandleFunc("GET /controls/{name}", s.handleGetControl)
	mux.HandleFunc("PUT /controls/{name}", s.handlePutControl)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendFailure maps a control error to an HTTP status.
func (s *Server) sendFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownControl):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, control.ErrNotImplemented):
		status = http.StatusNotImplemented
	default:
		switch control.Failure(err) {
		case control.FailureCapability:
			status = http.StatusMethodNotAllowed
		case control.FailureInvalid:
			status = http.StatusBadRequest
		case control.FailureTransport:
			status = http.StatusGatewayTimeout
		case control.FailureProtocol, control.FailureDecode:
			status = http.StatusBadGateway
		}
	}
	s.Logger.Error("Control request failed", "method", r.Method, "path", r.URL.Path, "error", err, "status", status)
	s.sendError(w, err.Error(), status)
}

type bandsBody struct {
	Bands []int `json:"bands"`
}

func (s *Server) handleGetBands(w http.ResponseWriter, r *http.Request) {
	bands, err := s.Controls.Band.ActiveBands(r.Context())
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, bandsBody{Bands: bands}, http.StatusOK)
}

func (s *Server) handleGetSupportedBands(w http.ResponseWriter, r *http.Request) {
	bands, err := s.Controls.Band.SupportedBands(r.Context())
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, bandsBody{Bands: bands}, http.StatusOK)
}

func (s *Server) handlePutBands(w http.ResponseWriter, r *http.Request) {
	var req bandsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Controls.Band.Set(r.Context(), req.Bands); err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.Logger.Info("Bands set", "bands", req.Bands)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetPDP(w http.ResponseWriter, r *http.Request) {
	contexts, err := s.Controls.PDP.Get(r.Context())
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	type PDPResponse struct {
		Contexts []control.PDPContext `json:"contexts"`
	}
	if contexts == nil {
		contexts = []control.PDPContext{}
	}
	s.sendJSON(w, PDPResponse{Contexts: contexts}, http.StatusOK)
}

func (s *Server) handlePostPDP(w http.ResponseWriter, r *http.Request) {
	var req control.PDPContext
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Type == "" || req.APN == "" {
		s.sendError(w, "both 'type' and 'apn' fields are required", http.StatusBadRequest)
		return
	}
	if err := s.Controls.PDP.Set(r.Context(), req); err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.Logger.Info("PDP context defined", "cid", req.CID, "type", req.Type, "apn", req.APN)
	w.WriteHeader(http.StatusOK)
}

type controlBody struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

func (s *Server) handleGetControl(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	value, err := s.Controls.Get(r.Context(), name)
	if err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.sendJSON(w, controlBody{Name: name, Value: value}, http.StatusOK)
}

func (s *Server) handlePutControl(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req controlBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var value string
	switch v := req.Value.(type) {
	case string:
		value = v
	case bool:
		value = strconv.FormatBool(v)
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s.sendError(w, "'value' must be a string, number or boolean", http.StatusBadRequest)
		return
	}

	if err := s.Controls.Set(r.Context(), name, value); err != nil {
		s.sendFailure(w, r, err)
		return
	}
	s.Logger.Info("Control set", "name", name, "value", value)
	w.WriteHeader(http.StatusOK)
}
