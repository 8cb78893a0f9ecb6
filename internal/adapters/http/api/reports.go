package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/domain/model"
)

// maxReportsBody bounds a POST /reports body.
const maxReportsBody = 16 << 20

var validate = validator.New()

// reportsRequest is the envelope form of POST /reports. A bare JSON array
// of batch records is also accepted.
type reportsRequest struct {
	Validator string              `json:"validator" validate:"omitempty,max=128"`
	Reports   []model.BatchReport `json:"reports" validate:"required,min=1,dive"`
}

type reportsResponse struct {
	Status string `json:"status"`
	service.IngestResult
}

func decodeReports(r *http.Request) (reportsRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportsBody))
	if err != nil {
		return reportsRequest{}, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)

	var req reportsRequest
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &req.Reports)
	} else {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		return reportsRequest{}, fmt.Errorf("decode body: %w", err)
	}
	if v := strings.TrimSpace(r.URL.Query().Get("validator")); v != "" && req.Validator == "" {
		req.Validator = v
	}
	if err := validate.Struct(req); err != nil {
		return reportsRequest{}, fmt.Errorf("validate body: %w", err)
	}
	return req, nil
}

// handlePostReports handles POST /reports. Duplicates are acknowledged;
// any batch refused by a full queue turns the response into 429 so the
// caller retries, and retried batches that were accepted come back as
// duplicates.
func (s *Server) handlePostReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reports"

	req, err := decodeReports(r)
	if err != nil {
		writeOpError(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := s.deps.Ingest(r.Context(), "api", req.Validator, req.Reports)
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	if res.Rejected > 0 {
		writeJSON(w, http.StatusTooManyRequests, reportsResponse{Status: "backpressure", IngestResult: res})
		return
	}
	status := "accepted"
	if res.Accepted == 0 {
		status = "duplicate"
	}
	writeJSON(w, http.StatusAccepted, reportsResponse{Status: status, IngestResult: res})
}
