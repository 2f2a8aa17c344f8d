package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IgorGrieder/linkstats/internal/constants"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	appvalidation "github.com/IgorGrieder/linkstats/internal/infrastructure/validation"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"go.uber.org/zap"
)

// MaxRows is the number of URLs the form accepts per submission.
const MaxRows = 5

const displayTime = "2006-01-02 15:04:05 MST"

//go:embed templates/*.html
var templateFiles embed.FS

var pages = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

type Handler struct {
	svc     *links.Service
	baseURL string
	now     func() time.Time
}

func NewHandler(svc *links.Service, baseURL string) *Handler {
	return &Handler{svc: svc, baseURL: baseURL, now: time.Now}
}

type formRow struct {
	URL       string
	Validity  string
	Shortcode string

	ShortLink string
	Expiry    string
	Error     string
}

type formPage struct {
	Title string
	Error string
	Rows  []formRow
}

type clickRow struct {
	Timestamp string
	IP        string
	Source    string
	Location  string
}

type statsView struct {
	URL         string
	CreatedAt   string
	Expiry      string
	Expired     bool
	TotalClicks int64
	Clicks      []clickRow
}

type statsPage struct {
	Title     string
	Error     string
	Shortcode string
	Stats     *statsView
}

// rowInput is checked with the same rules the browser applies to a URL field.
type rowInput struct {
	URL       string `json:"url" validate:"required,url"`
	Shortcode string `json:"shortcode" validate:"omitempty,shortcode"`
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "form", formPage{Title: "Shorten URLs", Rows: make([]formRow, MaxRows)})
}

func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "form", formPage{
			Title: "Shorten URLs",
			Error: constants.MsgInvalidRequestBody,
			Rows:  make([]formRow, MaxRows),
		})
		return
	}

	rows := make([]formRow, MaxRows)
	submitted := 0
	for i := range rows {
		idx := strconv.Itoa(i)
		rows[i] = formRow{
			URL:       strings.TrimSpace(r.PostFormValue("url_" + idx)),
			Validity:  strings.TrimSpace(r.PostFormValue("validity_" + idx)),
			Shortcode: strings.TrimSpace(r.PostFormValue("shortcode_" + idx)),
		}
		if rows[i].URL == "" && rows[i].Validity == "" && rows[i].Shortcode == "" {
			continue
		}
		submitted++
		h.shortenRow(r, &rows[i])
	}

	page := formPage{Title: "Shorten URLs", Rows: rows}
	status := http.StatusOK
	if submitted == 0 {
		page.Error = "Enter at least one URL"
		status = http.StatusBadRequest
	}
	h.render(w, status, "form", page)
}

func (h *Handler) shortenRow(r *http.Request, row *formRow) {
	if err := appvalidation.Validate(rowInput{URL: row.URL, Shortcode: row.Shortcode}); err != nil {
		field, _ := appvalidation.FirstFailure(err)
		if field == "shortcode" {
			row.Error = constants.MsgInvalidShortcode
		} else {
			row.Error = constants.MsgInvalidURL
		}
		return
	}

	var validity *int
	if row.Validity != "" {
		minutes, err := strconv.Atoi(row.Validity)
		if err != nil || minutes < 0 {
			row.Error = constants.MsgInvalidValidity
			return
		}
		validity = &minutes
	}

	link, err := h.svc.CreateLink(r.Context(), links.CreateLinkInput{
		URL:       row.URL,
		Validity:  validity,
		Shortcode: row.Shortcode,
	})
	if err != nil {
		row.Error = linkErrorMessage(err)
		return
	}

	row.ShortLink = links.ShortURL(h.baseURL, link.Slug)
	row.Expiry = link.ExpiresAt.UTC().Format(displayTime)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	page := statsPage{
		Title:     "Statistics",
		Shortcode: strings.TrimSpace(r.URL.Query().Get("shortcode")),
	}
	if page.Shortcode == "" {
		h.render(w, http.StatusOK, "stats", page)
		return
	}

	stats, err := h.svc.GetStats(r.Context(), page.Shortcode)
	if err != nil {
		page.Error = linkErrorMessage(err)
		status := http.StatusInternalServerError
		if errors.Is(err, links.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.render(w, status, "stats", page)
		return
	}

	view := &statsView{
		URL:         stats.URL,
		CreatedAt:   stats.CreatedAt.UTC().Format(displayTime),
		Expiry:      stats.ExpiresAt.UTC().Format(displayTime),
		Expired:     stats.Expired(h.now()),
		TotalClicks: stats.TotalClicks,
		Clicks:      make([]clickRow, 0, len(stats.Clicks)),
	}
	for _, c := range stats.Clicks {
		view.Clicks = append(view.Clicks, clickRow{
			Timestamp: c.Timestamp.UTC().Format(displayTime),
			IP:        c.IP,
			Source:    c.Source,
			Location:  c.Location,
		})
	}
	page.Stats = view

	h.render(w, http.StatusOK, "stats", page)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("failed to render page", zap.Error(err), zap.String("page", name))
	}
}

func linkErrorMessage(err error) string {
	switch {
	case errors.Is(err, links.ErrInvalidURL):
		return constants.MsgInvalidURL
	case errors.Is(err, links.ErrInvalidValidity):
		return constants.MsgInvalidValidity
	case errors.Is(err, links.ErrReservedShortcode):
		return constants.MsgReservedShortcode
	case errors.Is(err, links.ErrSlugTaken):
		return constants.MsgShortcodeTaken
	case errors.Is(err, links.ErrNotFound):
		return constants.MsgLinkNotFound
	}
	logger.Error("ui link operation failed", zap.Error(err))
	return constants.MsgInternalError
}
