package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/obsidianstack/assetrisk/internal/alerts"
	"github.com/obsidianstack/assetrisk/internal/compute"
	"github.com/obsidianstack/assetrisk/internal/ingest"
	"github.com/obsidianstack/assetrisk/internal/store"
	"github.com/obsidianstack/assetrisk/internal/telemetry"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// DefaultMaxUploadBytes caps upload bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

// Processor turns CSV text into a scored dataset. *pipeline.Pipeline
// satisfies it.
type Processor interface {
	Process(text string) (*types.ProcessedDataset, error)
}

// Listener is called after every successful upload, from the request
// goroutine. Listeners must not modify the entry.
type Listener func(e *store.Entry)

// Options wires the optional collaborators of a Handler.
type Options struct {
	Store   *store.Store // required
	Alerts  *alerts.Engine
	Metrics *telemetry.Metrics

	// Profiles feeds the tier legend of /distribution. Default: compute.DefaultProfiles().
	Profiles map[types.HealthStatus]compute.StatusProfile

	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler routes HTTP requests to the appropriate handler function.
type Handler struct {
	store    *store.Store
	alerts   *alerts.Engine
	metrics  *telemetry.Metrics
	profiles map[types.HealthStatus]compute.StatusProfile
	maxBytes int64
	log      *slog.Logger
	validate *validator.Validate
	router   chi.Router

	mu        sync.RWMutex
	proc      Processor
	listeners []Listener
}

// New creates a Handler that scores uploads with p.
func New(p Processor, opts Options) *Handler {
	h := &Handler{
		store:    opts.Store,
		alerts:   opts.Alerts,
		metrics:  opts.Metrics,
		profiles: opts.Profiles,
		maxBytes: opts.MaxUploadBytes,
		log:      opts.Logger,
		proc:     p,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.maxBytes <= 0 {
		h.maxBytes = DefaultMaxUploadBytes
	}
	if h.profiles == nil {
		h.profiles = compute.DefaultProfiles()
	}

	h.validate = validator.New()
	h.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/alerts", h.listAlerts)
		r.Post("/datasets", h.createDataset)
		r.Get("/datasets", h.listDatasets)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", h.getDataset)
			r.Delete("/", h.deleteDataset)
			r.Get("/assets", h.listAssets)
			r.Get("/assets/{assetID}", h.getAsset)
			r.Get("/kpis", h.kpis)
			r.Get("/locations", h.locations)
			r.Get("/distribution", h.distribution)
		})
	})
	h.router = r
	return h
}

// SetProcessor swaps the processor used by later uploads, e.g. after a
// config reload. Uploads already running finish with the old one.
func (h *Handler) SetProcessor(p Processor) {
	h.mu.Lock()
	h.proc = p
	h.mu.Unlock()
}

// OnProcessed registers fn to run after every successful upload.
func (h *Handler) OnProcessed(fn Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		DatasetCount: h.store.Count(),
		GeneratedAt:  time.Now().UTC(),
	}
	if h.alerts != nil {
		resp.AlertCount = len(h.alerts.Active())
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listAlerts(w http.ResponseWriter, _ *http.Request) {
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

func (h *Handler) listDatasets(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Summaries())
}

func (h *Handler) createDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	text, filename, err := readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		jsonErr(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = filename
	}
	if name == "" {
		name = "upload-" + time.Now().UTC().Format("20060102T150405Z")
	}

	h.mu.RLock()
	proc := h.proc
	h.mu.RUnlock()

	start := time.Now()
	ds, err := proc.Process(text)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveFailure(err)
		}
		if isInputError(err) {
			h.log.Warn("api: upload rejected", "name", name, "error", err)
			jsonErr(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error("api: process upload", "name", name, "error", err)
		jsonErr(w, http.StatusInternalServerError, "processing failed")
		return
	}
	took := time.Since(start)
	if h.metrics != nil {
		h.metrics.ObserveRun(ds, took)
	}

	e := h.store.Put(name, ds)
	h.log.Info("api: dataset processed",
		"id", e.ID,
		"name", name,
		"assets", ds.KPIs.TotalAssets,
		"critical", ds.KPIs.CriticalCount,
		"skipped", len(ds.Skipped),
		"took", took,
	)

	if h.alerts != nil {
		h.alerts.Evaluate(e.ID, e.Name, ds)
	}
	h.mu.RLock()
	listeners := h.listeners
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}

	jsonResp(w, http.StatusCreated, h.datasetResponse(e))
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, h.datasetResponse(e))
}

func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id) {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return
	}
	h.log.Info("api: dataset deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// assetParams are the query parameters of GET .../assets.
type assetParams struct {
	Text   string `query:"q" validate:"max=256"`
	Status string `query:"status" validate:"omitempty,oneof=All Healthy Degrading Critical"`
	Sort   string `query:"sort" validate:"omitempty,oneof=asset_id location failure_probability health_status parsed_timestamp temperature vibration_level pressure runtime_hours"`
	Order  string `query:"order" validate:"omitempty,oneof=asc desc"`
	Limit  int    `query:"limit" validate:"min=0,max=10000"`
	Offset int    `query:"offset" validate:"min=0"`
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}

	qs := r.URL.Query()
	p := assetParams{
		Text:   qs.Get("q"),
		Status: qs.Get("status"),
		Sort:   qs.Get("sort"),
		Order:  qs.Get("order"),
	}
	var err error
	if p.Limit, err = intParam(qs.Get("limit"), 100); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid query parameter limit: "+err.Error())
		return
	}
	if p.Offset, err = intParam(qs.Get("offset"), 0); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid query parameter offset: "+err.Error())
		return
	}
	if !h.valid(w, p) {
		return
	}

	q := compute.AssetQuery{
		Text:      p.Text,
		Sort:      compute.SortKey(p.Sort),
		Ascending: p.Order == "asc",
	}
	if p.Status != "" && p.Status != "All" {
		s, err := types.ParseHealthStatus(p.Status)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Status = &s
	}

	matched := compute.FilterSort(e.Dataset.Assets, q)
	resp := AssetsResponse{Total: len(matched), Offset: p.Offset, Limit: p.Limit}
	lo := min(p.Offset, len(matched))
	hi := len(matched)
	if p.Limit > 0 {
		hi = min(lo+p.Limit, len(matched))
	}
	resp.Items = matched[lo:hi]
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	assetID := chi.URLParam(r, "assetID")

	var readings []ReadingResponse
	for _, rec := range e.Dataset.Assets {
		if rec.AssetID != assetID {
			continue
		}
		contribs := compute.Contributions(rec.RawRecord)
		if contribs == nil {
			contribs = []compute.Contribution{}
		}
		readings = append(readings, ReadingResponse{
			ScoredRecord:  rec,
			Contributions: contribs,
			Diagnostics:   computeDiagnostics(rec),
		})
	}
	if len(readings) == 0 {
		jsonErr(w, http.StatusNotFound, "asset not found")
		return
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].ParsedTimestamp.Before(readings[j].ParsedTimestamp)
	})
	jsonResp(w, http.StatusOK, AssetResponse{AssetID: assetID, Readings: readings})
}

func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	k := e.Dataset.KPIs
	qs, err := compute.RiskQuantiles(e.Dataset.Assets)
	if err != nil {
		h.log.Warn("api: risk quantiles", "id", e.ID, "error", err)
	}
	jsonResp(w, http.StatusOK, KPIResponse{
		KPISummary:   k,
		CriticalPct:  pct(k.CriticalCount, k.TotalAssets),
		DegradingPct: pct(k.DegradingCount, k.TotalAssets),
		HealthyPct:   pct(k.HealthyCount, k.TotalAssets),
		SkippedRows:  len(e.Dataset.Skipped),
		Quantiles:    qs,
	})
}

type locationParams struct {
	Limit int `query:"limit" validate:"min=1,max=1000"`
}

func (h *Handler) locations(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	var (
		p   locationParams
		err error
	)
	if p.Limit, err = intParam(r.URL.Query().Get("limit"), compute.DefaultLocationLimit); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid query parameter limit: "+err.Error())
		return
	}
	if !h.valid(w, p) {
		return
	}
	jsonResp(w, http.StatusOK, compute.ByLocation(e.Dataset.Assets, p.Limit))
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	qs, err := compute.RiskQuantiles(e.Dataset.Assets)
	if err != nil {
		h.log.Warn("api: risk quantiles", "id", e.ID, "error", err)
	}

	k := e.Dataset.KPIs
	counts := map[types.HealthStatus]int{
		types.Healthy:   k.HealthyCount,
		types.Degrading: k.DegradingCount,
		types.Critical:  k.CriticalCount,
	}
	bounds := map[types.HealthStatus][2]float64{
		types.Healthy:   {0, compute.HealthyMax},
		types.Degrading: {compute.HealthyMax, compute.DegradingMax},
		types.Critical:  {compute.DegradingMax, 1},
	}
	tiers := make([]TierInfo, 0, len(types.Statuses))
	for _, s := range types.Statuses {
		prof, ok := h.profiles[s]
		if !ok {
			prof = compute.StatusProfile{Action: compute.ActionFor(s)}
		}
		tiers = append(tiers, TierInfo{
			Status: s,
			Action: prof.Action,
			Color:  prof.Color,
			Min:    bounds[s][0],
			Max:    bounds[s][1],
			Count:  counts[s],
		})
	}

	jsonResp(w, http.StatusOK, DistributionResponse{
		Bins:      compute.Histogram(e.Dataset.Assets),
		Quantiles: qs,
		Tiers:     tiers,
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

// entry resolves the {id} URL parameter, writing a 404 when it is unknown.
func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	e, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return nil, false
	}
	return e, true
}

func (h *Handler) datasetResponse(e *store.Entry) DatasetResponse {
	s := h.store.Summarize(e)
	skipped := e.Dataset.Skipped
	if skipped == nil {
		skipped = []types.SkippedRow{}
	}
	return DatasetResponse{
		ID:        e.ID,
		Name:      e.Name,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		KPIs:      e.Dataset.KPIs,
		Assets:    e.Dataset.Assets,
		Skipped:   skipped,
	}
}

// valid runs struct validation on p, writing a 400 on failure.
func (h *Handler) valid(w http.ResponseWriter, p any) bool {
	err := h.validate.Struct(p)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("invalid query parameter %s: failed %q", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("invalid query parameter %s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		jsonErr(w, http.StatusBadRequest, msg)
		return false
	}
	jsonErr(w, http.StatusBadRequest, err.Error())
	return false
}

// readUpload returns the CSV text of r, taken from the multipart "file"
// field when the request is multipart and from the raw body otherwise.
func readUpload(r *http.Request) (text, filename string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return "", "", err
		}
		return string(b), hdr.Filename, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", err
	}
	return string(b), "", nil
}

func isInputError(err error) bool {
	return errors.Is(err, ingest.ErrMalformedInput) ||
		errors.Is(err, ingest.ErrMissingColumns) ||
		errors.Is(err, ingest.ErrNoValidData)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// pct returns n as a percentage of total, rounded to one decimal.
func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

// jsonResp writes v as JSON with the given status code.
func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "error", err)
	}
}

// jsonErr writes a JSON error body.
func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, errorResponse{Error: msg})
}
