package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/IgorGrieder/linkstats/internal/config"
	"github.com/IgorGrieder/linkstats/internal/constants"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/collector"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	appvalidation "github.com/IgorGrieder/linkstats/internal/infrastructure/validation"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/IgorGrieder/linkstats/pkg/httputils"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// isoMillis matches the millisecond ISO-8601 timestamps clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

type LinksHandler struct {
	svc            *links.Service
	reporter       *collector.Reporter
	baseURL        string
	redirectStatus int
}

func NewLinksHandler(cfg *config.Config, svc *links.Service, reporter *collector.Reporter) *LinksHandler {
	status := cfg.Shortener.RedirectStatus
	if status == 0 {
		status = http.StatusFound
	}

	return &LinksHandler{
		svc:            svc,
		reporter:       reporter,
		baseURL:        cfg.Shortener.BaseURL,
		redirectStatus: status,
	}
}

type createLinkRequest struct {
	URL       string          `json:"url" validate:"required,notblank"`
	Validity  validityMinutes `json:"validity"`
	Shortcode string          `json:"shortcode,omitempty" validate:"omitempty,shortcode"`
}

type createLinkResponse struct {
	ShortLink string `json:"shortLink"`
	Expiry    string `json:"expiry"`
}

type clickResponse struct {
	Timestamp string `json:"timestamp"`
	IP        string `json:"ip"`
	Source    string `json:"source"`
	Location  string `json:"location"`
}

type statsResponse struct {
	URL          string          `json:"url"`
	CreatedAt    string          `json:"createdAt"`
	Expiry       string          `json:"expiry"`
	TotalClicks  int64           `json:"totalClicks"`
	ClickDetails []clickResponse `json:"clickDetails"`
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			switch typeErr.Field {
			case "url":
				apiErr = constants.ErrInvalidURL
			case "shortcode":
				apiErr = constants.ErrInvalidShortcode
			}
		}
		h.reporter.Report(collector.LevelError, "handler", "invalid request body")
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	if err := appvalidation.Validate(req); err != nil {
		field, _ := appvalidation.FirstFailure(err)
		apiErr := constants.ErrInvalidRequestBody
		switch field {
		case "url":
			apiErr = constants.ErrInvalidURL
			h.reporter.Report(collector.LevelError, "handler", "invalid or missing URL")
		case "shortcode":
			apiErr = constants.ErrInvalidShortcode
			h.reporter.Report(collector.LevelError, "handler", "invalid shortcode")
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}
	if req.Validity.invalid {
		h.reporter.Report(collector.LevelError, "handler", "invalid validity")
		httputils.WriteAPIError(w, r, constants.ErrInvalidValidity)
		return
	}

	link, err := h.svc.CreateLink(r.Context(), links.CreateLinkInput{
		URL:       req.URL,
		Validity:  req.Validity.value,
		Shortcode: req.Shortcode,
	})
	if err != nil {
		switch {
		case errors.Is(err, links.ErrSlugTaken):
			h.reporter.Report(collector.LevelError, "handler", "Shortcode collision")
		default:
			h.reporter.Report(collector.LevelError, "handler", "create shortlink failed")
		}
		h.writeLinkError(w, r, err, req.Shortcode)
		return
	}

	h.reporter.Report(collector.LevelInfo, "service", "Shortlink created for "+link.URL)

	httputils.WriteJSON(w, r, http.StatusCreated, createLinkResponse{
		ShortLink: links.ShortURL(h.baseURL, link.Slug),
		Expiry:    link.ExpiresAt.UTC().Format(isoMillis),
	})
}

// Redirect answers in plain text because browsers, not API clients, follow short links.
func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("shortcode")

	link, err := h.svc.Resolve(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrNotFound):
			metrics.Redirects.WithLabelValues(metrics.OutcomeNotFound).Inc()
			h.reporter.Report(collector.LevelError, "handler", fmt.Sprintf("Shortlink %s not found", slug))
			http.Error(w, constants.MsgLinkNotFound, http.StatusNotFound)
		case errors.Is(err, links.ErrExpired):
			metrics.Redirects.WithLabelValues(metrics.OutcomeExpired).Inc()
			h.reporter.Report(collector.LevelWarn, "handler", fmt.Sprintf("Shortlink %s expired", slug))
			http.Error(w, constants.MsgLinkExpired, http.StatusGone)
		default:
			metrics.Redirects.WithLabelValues(metrics.OutcomeError).Inc()
			logger.Error("failed to resolve slug", zap.Error(err), zap.String("slug", slug))
			http.Error(w, constants.MsgInternalError, http.StatusInternalServerError)
		}
		return
	}

	// The link resolved, so the visitor is redirected even when the click
	// could not be stored.
	outcome := metrics.OutcomeOK
	if _, err := h.svc.RecordClick(r.Context(), slug, links.ClickInput{
		IP:       httputils.ClientIP(r),
		Referrer: r.Referer(),
	}); err != nil {
		outcome = metrics.OutcomeError
		logger.Warn("failed to record click", zap.Error(err), zap.String("slug", slug))
	}

	metrics.Redirects.WithLabelValues(outcome).Inc()
	h.reporter.Report(collector.LevelInfo, "handler", fmt.Sprintf("Redirecting shortcode %s to %s", slug, link.URL))
	http.Redirect(w, r, link.URL, h.redirectStatus)
}

func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("shortcode")

	stats, err := h.svc.GetStats(r.Context(), slug)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			h.reporter.Report(collector.LevelError, "handler", fmt.Sprintf("Shortlink %s not found for stats", slug))
		}
		h.writeLinkError(w, r, err, slug)
		return
	}

	details := make([]clickResponse, 0, len(stats.Clicks))
	for _, c := range stats.Clicks {
		details = append(details, clickResponse{
			Timestamp: c.Timestamp.UTC().Format(isoMillis),
			IP:        c.IP,
			Source:    c.Source,
			Location:  c.Location,
		})
	}

	h.reporter.Report(collector.LevelInfo, "handler", "Stats fetched for "+slug)

	httputils.WriteJSON(w, r, http.StatusOK, statsResponse{
		URL:          stats.URL,
		CreatedAt:    stats.CreatedAt.UTC().Format(isoMillis),
		Expiry:       stats.ExpiresAt.UTC().Format(isoMillis),
		TotalClicks:  stats.TotalClicks,
		ClickDetails: details,
	})
}

// QRCode renders the short link as a PNG. ?size= sets the edge in pixels.
func (h *LinksHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("shortcode")

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minQRSize || parsed > maxQRSize {
			httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage(
				fmt.Sprintf("size must be between %d and %d", minQRSize, maxQRSize)))
			return
		}
		size = parsed
	}

	link, err := h.svc.GetLink(r.Context(), slug)
	if err != nil {
		h.writeLinkError(w, r, err, slug)
		return
	}

	png, err := qrcode.Encode(links.ShortURL(h.baseURL, link.Slug), qrcode.Medium, size)
	if err != nil {
		logger.Error("failed to render qr code", zap.Error(err), zap.String("slug", slug))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(time.Hour.Seconds())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *LinksHandler) writeLinkError(w http.ResponseWriter, r *http.Request, err error, slug string) {
	switch {
	case errors.Is(err, links.ErrInvalidURL):
		httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
	case errors.Is(err, links.ErrInvalidValidity):
		httputils.WriteAPIError(w, r, constants.ErrInvalidValidity)
	case errors.Is(err, links.ErrReservedShortcode):
		httputils.WriteAPIError(w, r, constants.ErrReservedShortcode)
	case errors.Is(err, links.ErrSlugTaken):
		httputils.WriteAPIError(w, r, constants.ErrShortcodeTaken)
	case errors.Is(err, links.ErrNotFound):
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
	case errors.Is(err, links.ErrExpired):
		httputils.WriteAPIError(w, r, constants.ErrLinkExpired)
	default:
		logger.Error("link operation failed", zap.Error(err), zap.String("slug", slug))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
	}
}
