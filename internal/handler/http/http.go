package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
)

const (
	HeaderRequestID = "X-Request-Id"

	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
	counterTimeout  = 2 * time.Second
)

var errInvalidBody = errors.New("Invalid request body.")

type InfoService interface {
	Info(ctx context.Context, rawURL string) (*entity.VideoInfo, error)
}

type DownloadService interface {
	Download(ctx context.Context, req *entity.DownloadRequest) (*entity.DownloadResult, error)
}

type CounterService interface {
	Inc(ctx context.Context, platform entity.Platform, mode entity.DownloadMode) error
	GetDownloadCounters(ctx context.Context) (map[string]int64, error)
}

type PageService interface {
	GetPage(ctx context.Context) (string, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewInfoHandler(maxBodyBytes int64, srv InfoService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "InfoHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(w, log)

		var req entity.InfoRequest
		if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeFailure(w, log, err)

			return
		}

		info, err := srv.Info(r.Context(), req.URL)
		if err != nil {
			writeFailure(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, info)
	}
}

func NewDownloadHandler(maxBodyBytes int64, srv DownloadService, counter CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(w, log)

		var req entity.DownloadRequest
		if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeFailure(w, log, err)

			return
		}

		res, err := srv.Download(r.Context(), &req)
		if err != nil {
			writeFailure(w, log, err)

			return
		}

		w.Header().Set("Content-Type", res.MIMEType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(res.ContentLength()))
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(res.Data); err != nil {
			log.Warn("Cannot write media", slog.String("filename", res.Filename), slog.Any("error", err))

			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), counterTimeout)
		defer cancel()

		if err := counter.Inc(ctx, res.Platform, res.Mode); err != nil {
			log.Warn("Cannot count download", slog.Any("error", err))
		}

		log.Info("Download sent", slog.String("filename", res.Filename), slog.Int("size", res.ContentLength()))
	}
}

func NewCounterHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CounterHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := srv.GetDownloadCounters(r.Context())
		if err != nil {
			if errors.Is(err, common.ErrStatsDisabled) {
				writeError(w, log, http.StatusNotFound, "Statistics are disabled.")

				return
			}

			log.Error("Cannot get download counters", slog.Any("error", err))
			writeError(w, log, http.StatusInternalServerError, "Cannot get download counters.")

			return
		}

		writeJSON(w, log, http.StatusOK, counters)
	}
}

func NewPageHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		content, err := srv.GetPage(r.Context())
		if err != nil {
			http.Error(w, "Cannot get page", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if _, err := w.Write([]byte(content)); err != nil {
			log.Warn("Cannot write page", slog.Any("error", err))
		}
	}
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(kind common.Kind) int {
	switch kind {
	case common.KindBadRequest:
		return http.StatusBadRequest
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindServiceUnavailable:
		return http.StatusInternalServerError
	case common.KindUpstream:
		return http.StatusBadGateway
	case common.KindInternal:
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}

func requestLogger(w http.ResponseWriter, log *slog.Logger) *slog.Logger {
	id := uuid.NewString()
	w.Header().Set(HeaderRequestID, id)

	return log.With(slog.String("request_id", id))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBodyBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.NewError(common.KindBadRequest, "Request body is too large.", err)
		}

		return common.NewError(common.KindBadRequest, errInvalidBody.Error(), errors.Join(errInvalidBody, err))
	}

	return nil
}

func writeFailure(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := common.KindOf(err)
	status := StatusCode(kind)

	msg := common.Message(err)
	if kind == common.KindInternal {
		log.Error("Request failed", slog.Any("error", err))
		msg = http.StatusText(status)
	} else {
		log.Warn("Request rejected", slog.String("kind", kind.String()), slog.Int("status", status), slog.Any("error", err))
	}

	writeError(w, log, status, msg)
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, msg string) {
	writeJSON(w, log, status, &errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Cannot write response", slog.Any("error", err))
	}
}
