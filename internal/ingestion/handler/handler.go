package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
)

// Ingester is implemented by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, docs []catalog.Document) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester     Ingester
	maxBodyBytes int64
	maxBatch     int
	logger       *slog.Logger
}

func New(ingester Ingester, maxBodyBytes int64, maxBatch int) *Handler {
	return &Handler{
		ingester:     ingester,
		maxBodyBytes: maxBodyBytes,
		maxBatch:     maxBatch,
		logger:       slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest accepts one document object, an array of documents, or
// {"documents": [...]}.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	docs, err := decodeDocuments(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateBatch(docs, h.maxBatch); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, docs)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("documents ingested",
		"event_id", resp.EventID,
		"accepted", resp.Accepted,
		"published", resp.Published,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func decodeDocuments(raw []byte) ([]catalog.Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var docs []catalog.Document
		err := json.Unmarshal(trimmed, &docs)
		return docs, err
	}
	var envelope struct {
		Documents *[]catalog.Document `json:"documents"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Documents != nil {
		return *envelope.Documents, nil
	}
	var doc catalog.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return []catalog.Document{doc}, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
