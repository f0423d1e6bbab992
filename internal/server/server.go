package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"IchimokuScanner/internal/export"
	"IchimokuScanner/internal/history"
	"IchimokuScanner/internal/metrics"
	"IchimokuScanner/internal/model"
	"IchimokuScanner/internal/scanner"
	"IchimokuScanner/internal/scheduler"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	msgScanNotFound = "Scan not found"
	msgNoScanData   = "No scan data provided"
	msgPDFFailed    = "Failed to generate PDF"
	msgBadBody      = "Invalid request body"
)

// Handler is the HTTP front end: dashboard, scan and history API, exports,
// progress stream and metrics.
type Handler struct {
	router  *gin.Engine
	sched   *scheduler.Scheduler
	store   history.Store
	metrics *metrics.Metrics
	hub     *Hub
	now     func() time.Time
}

// NewHandler builds the router. metrics and hub may be nil.
func NewHandler(sched *scheduler.Scheduler, m *metrics.Metrics, hub *Hub) *Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/index.html")))

	h := &Handler{
		router:  router,
		sched:   sched,
		store:   sched.Store,
		metrics: m,
		hub:     hub,
		now:     time.Now,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/", h.index)

	api := h.router.Group("/api")
	{
		api.POST("/scan", h.scan)
		api.GET("/status", h.status)
		api.GET("/history", h.history)
		api.GET("/history/:id", h.historyDetail)
		api.POST("/download-pdf", h.downloadPDF)
		api.GET("/export/:id", h.exportReport)
	}

	if h.metrics != nil {
		h.router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	if h.hub != nil {
		h.router.GET("/ws/progress", func(c *gin.Context) { h.hub.ServeWS(c.Writer, c.Request) })
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Timeframes": scanner.Timeframes,
		"Default":    h.sched.Defaults,
	})
}

type scanRequest struct {
	Timeframe string          `json:"timeframe"`
	MinGap    json.RawMessage `json:"min_gap"`
}

// gapText accepts min_gap as a JSON number or string.
func gapText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", err
		}
		if v == "" {
			return "", &scanner.RequestError{Msg: scanner.MsgInvalidMinGap}
		}
		return v, nil
	}
	return s, nil
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgBadBody})
			return
		}
	}
	gap, err := gapText(req.MinGap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": scanner.MsgInvalidMinGap})
		return
	}
	params, err := h.sched.Defaults.WithRequest(req.Timeframe, gap)
	if err != nil {
		var reqErr *scanner.RequestError
		if errors.As(err, &reqErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": reqErr.Msg})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	zap.L().Info("scan requested",
		zap.String("timeframe", params.Timeframe), zap.Float64("min_gap", params.MinGapPct))
	report, err := h.sched.RunScan(c.Request.Context(), params, scheduler.TriggerAPI)
	if report == nil {
		zap.L().Error("scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body, err := withHistoryID(report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// withHistoryID renders the flat report with a history_id key next to id.
func withHistoryID(report *model.ScanReport) ([]byte, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	id, err := json.Marshal(report.ID)
	if err != nil {
		return nil, err
	}
	fields["history_id"] = id
	return json.Marshal(fields)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"message": "Ichimoku Scanner is running",
		"scanner": h.sched.Status(),
	})
}

func (h *Handler) history(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		zap.L().Error("list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []model.HistorySummary{}
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

// loadReport fetches a stored report and writes the error response when it
// cannot.
func (h *Handler) loadReport(c *gin.Context, id string) (*model.ScanReport, bool) {
	report, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgScanNotFound})
		return nil, false
	}
	if err != nil {
		zap.L().Error("load scan", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return report, true
}

func (h *Handler) historyDetail(c *gin.Context) {
	report, ok := h.loadReport(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

type pdfRequest struct {
	ScanID     string          `json:"scan_id"`
	ScanResult json.RawMessage `json:"scan_result"`
}

func (h *Handler) downloadPDF(c *gin.Context) {
	var req pdfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadBody})
		return
	}

	var report *model.ScanReport
	if req.ScanID != "" {
		r, ok := h.loadReport(c, req.ScanID)
		if !ok {
			return
		}
		report = r
	} else {
		raw := strings.TrimSpace(string(req.ScanResult))
		if raw == "" || raw == "null" || raw == "{}" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNoScanData})
			return
		}
		report = &model.ScanReport{}
		if err := json.Unmarshal(req.ScanResult, report); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var buf bytes.Buffer
	pdf := export.PDFWriter{Now: h.now}
	if err := pdf.Write(&buf, report); err != nil {
		zap.L().Error("generate pdf", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgPDFFailed})
		return
	}
	name := fmt.Sprintf("ichimoku_scan_%s.pdf", h.now().Format(history.IDLayout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, pdf.ContentType(), buf.Bytes())
}

func (h *Handler) exportReport(c *gin.Context) {
	wr, err := export.New(c.DefaultQuery("format", "csv"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p, ok := wr.(export.PDFWriter); ok {
		p.Now = h.now
		wr = p
	}
	id := c.Param("id")
	report, ok := h.loadReport(c, id)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := wr.Write(&buf, report); err != nil {
		zap.L().Error("export scan", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := fmt.Sprintf("ichimoku_scan_%s.%s", id, wr.Extension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, wr.ContentType(), buf.Bytes())
}
