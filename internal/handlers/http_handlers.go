package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"shiftdraw/internal/export"
	"shiftdraw/internal/imageedit"
	"shiftdraw/internal/models"
	"shiftdraw/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
)

const (
	tenantCookie = "tenant_id"
	tenantKey    = "tenantID"
)

// maxUploadBytes caps uploaded import files and images.
var maxUploadBytes int64 = 10 << 20

var errUploadTooLarge = errors.New("upload exceeds the size limit")

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service   *services.LotteryService
	editor    *imageedit.Guard
	templates *template.Template
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, editor *imageedit.Guard, templates *template.Template) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		editor:    editor,
		templates: templates,
	}
}

// standardResponse sends a consistent JSON response
func standardResponse(c *gin.Context, code int, status string, data interface{}, err string) {
	response := gin.H{"status": status}

	if data != nil {
		response["data"] = data
	}

	if err != "" {
		response["error"] = err
	}

	c.JSON(code, response)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyName),
		errors.Is(err, models.ErrUnknownGroup),
		errors.Is(err, models.ErrInvalidCardID),
		errors.Is(err, imageedit.ErrEmptyImage),
		errors.Is(err, imageedit.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPersonNotFound),
		errors.Is(err, models.ErrShiftNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateName),
		errors.Is(err, models.ErrConfirmationRequired),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrDeckExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrDrawInProgress),
		errors.Is(err, imageedit.ErrEditInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrExternalService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// uploadStatus is 413 for oversized uploads and 400 for any other read failure.
func uploadStatus(err error) int {
	if errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func errorResponse(c *gin.Context, err error) {
	standardResponse(c, statusFor(err), "error", nil, err.Error())
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	buf := new(bytes.Buffer)
	err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData)
	if err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	pageData["PageContent"] = template.HTML(buf.String())

	c.Header("Content-Type", "text/html; charset=utf-8")
	err = h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData)
	if err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}

// TenantMiddleware identifies the browser by cookie, issuing a new tenant id
// on first visit.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := c.Cookie(tenantCookie)
		if err != nil || tenantID == "" {
			tenantID = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(tenantCookie, tenantID, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantOf(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// RegisterPublicRoutes registers routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	router.GET("/api/decks", h.ListDecks)
}

// RegisterTenantRoutes registers all routes that work on a tenant's session.
func (h *HTTPHandler) RegisterTenantRoutes(router *gin.RouterGroup) {
	router.GET("/", h.ShowIndex)
	router.GET("/schedule/print", h.ShowSchedulePrint)

	api := router.Group("/api")
	api.GET("/people", h.ListPeople)
	api.POST("/people", h.AddPerson)
	api.POST("/people/bulk", h.BulkAddPeople)
	api.DELETE("/people", h.ClearPeople)
	api.DELETE("/people/:id", h.RemovePerson)

	api.GET("/summary", h.GetSummary)
	api.POST("/draw/:group", h.PerformDraw)
	api.GET("/board/:group", h.GetBoard)
	api.GET("/results", h.ListResults)
	api.GET("/results.csv", h.ExportResultsCSV)

	api.GET("/shifts", h.ListShifts)
	api.POST("/shifts", h.AddShift)
	api.POST("/shifts/bulk", h.BulkImportShifts)
	api.DELETE("/shifts/:id", h.RemoveShift)

	api.GET("/schedule", h.GetSchedule)
	api.GET("/schedule.csv", h.ExportScheduleCSV)
	api.GET("/schedule.xlsx", h.ExportScheduleXLSX)

	api.POST("/image/edit", h.EditImage)
	api.POST("/session/reset", h.ResetSession)
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", nil, "")
}

// ListDecks returns the fixed deck of every group.
func (h *HTTPHandler) ListDecks(c *gin.Context) {
	decks := make([]gin.H, 0, len(models.Groups))
	for _, g := range models.Groups {
		decks = append(decks, gin.H{
			"group": g,
			"label": g.Label(),
			"size":  models.TotalSize(g),
			"cards": models.DeckFor(g),
		})
	}
	standardResponse(c, http.StatusOK, "ok", decks, "")
}

// ShowIndex handles the request for the home page.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	tenantID := tenantOf(c)
	h.renderPage(c, gin.H{
		"title":   "春節休假抽籤",
		"Summary": h.service.Summary(tenantID),
		"Results": h.service.Results(tenantID),
	}, "index.html")
}

// ShowSchedulePrint renders the final schedule as a printable page.
func (h *HTTPHandler) ShowSchedulePrint(c *gin.Context) {
	h.renderPage(c, gin.H{
		"title":       "休假班表",
		"Schedule":    h.service.Schedule(tenantOf(c)),
		"Placeholder": services.NotDrawnPlaceholder,
	}, "schedule_print.html")
}

// ListPeople returns the roster with draw status.
func (h *HTTPHandler) ListPeople(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", h.service.Roster(tenantOf(c)), "")
}

// AddPerson handles the single-entry form.
func (h *HTTPHandler) AddPerson(c *gin.Context) {
	var req struct {
		Name  string `json:"name" form:"name" binding:"required"`
		Group string `json:"group" form:"group" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, err.Error())
		return
	}
	group, err := models.ParseGroup(req.Group)
	if err != nil {
		errorResponse(c, err)
		return
	}

	person, err := h.service.AddPerson(tenantOf(c), req.Name, group)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusCreated, "created", person, "")
}

// readUpload reads an uploaded file whole. Files over maxUploadBytes are
// refused rather than cut short.
func readUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", errUploadTooLarge, maxUploadBytes)
	}
	return data, nil
}

// readBulkText takes the import text from an uploaded "file" or a "text" field.
func readBulkText(c *gin.Context) (string, error) {
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		data, err := readUpload(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return c.PostForm("text"), nil
}

// BulkAddPeople imports "name[, group]" lines. Duplicates are reported, not fatal.
func (h *HTTPHandler) BulkAddPeople(c *gin.Context) {
	text, err := readBulkText(c)
	if err != nil {
		standardResponse(c, uploadStatus(err), "error", nil, err.Error())
		return
	}
	group, err := models.ParseGroup(c.DefaultPostForm("group", string(models.GroupCamera)))
	if err != nil {
		errorResponse(c, err)
		return
	}

	report, err := h.service.BulkAddPeople(tenantOf(c), text, group)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "ok", report, "")
}

// RemovePerson removes a person; a drawn person needs ?confirm=true.
func (h *HTTPHandler) RemovePerson(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.DefaultQuery("confirm", "false"))
	if err := h.service.RemovePerson(tenantOf(c), c.Param("id"), confirmed); err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "deleted", nil, "")
}

// ClearPeople empties the roster and all results.
func (h *HTTPHandler) ClearPeople(c *gin.Context) {
	h.service.ClearRoster(tenantOf(c))
	standardResponse(c, http.StatusOK, "deleted", nil, "")
}

// GetSummary returns per-group counts.
func (h *HTTPHandler) GetSummary(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", h.service.Summary(tenantOf(c)), "")
}

// PerformDraw handles the request to deal cards to a group.
func (h *HTTPHandler) PerformDraw(c *gin.Context) {
	group, err := models.ParseGroup(c.Param("group"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	outcome, err := h.service.Draw(tenantOf(c), group)
	if err != nil {
		errorResponse(c, err)
		return
	}

	revealIn := int64(0)
	if !outcome.RevealAt.IsZero() {
		revealIn = time.Until(outcome.RevealAt).Milliseconds()
		if revealIn < 0 {
			revealIn = 0
		}
	}
	standardResponse(c, http.StatusOK, "ok", gin.H{
		"group":      outcome.Group,
		"drawn":      len(outcome.Results),
		"revealAt":   outcome.RevealAt,
		"revealInMs": revealIn,
	}, "")
}

// GetBoard returns a group's draw board.
func (h *HTTPHandler) GetBoard(c *gin.Context) {
	group, err := models.ParseGroup(c.Param("group"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	board, err := h.service.Board(tenantOf(c), group)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "ok", board, "")
}

// ListResults returns the results grouped, joker first then by rank.
func (h *HTTPHandler) ListResults(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", h.service.Results(tenantOf(c)), "")
}

// ExportResultsCSV handles the request to download the results as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=draw_results.csv")

	if err := export.ResultsCSV(c.Writer, h.service.Results(tenantOf(c))); err != nil {
		logger.Errorf("Error writing results CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

// ListShifts returns the shift mapping table.
func (h *HTTPHandler) ListShifts(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", h.service.Shifts(tenantOf(c)), "")
}

// AddShift maps a shift to a card, given either a card id or a group and rank.
func (h *HTTPHandler) AddShift(c *gin.Context) {
	var req struct {
		Name         string `json:"name" form:"name" binding:"required"`
		RequiredCard string `json:"requiredCard" form:"requiredCard"`
		Group        string `json:"group" form:"group"`
		Rank         string `json:"rank" form:"rank"`
	}
	if err := c.ShouldBind(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, err.Error())
		return
	}

	tenantID := tenantOf(c)
	var (
		shift models.ShiftDefinition
		err   error
	)
	if req.RequiredCard != "" {
		shift, err = h.service.AddShiftCard(tenantID, req.Name, req.RequiredCard)
	} else {
		var group models.Group
		if group, err = models.ParseGroup(req.Group); err == nil {
			shift, err = h.service.AddShift(tenantID, req.Name, group, req.Rank)
		}
	}
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusCreated, "created", shift, "")
}

// BulkImportShifts imports "name, group, rank" lines, skipping what does not parse.
func (h *HTTPHandler) BulkImportShifts(c *gin.Context) {
	text, err := readBulkText(c)
	if err != nil {
		standardResponse(c, uploadStatus(err), "error", nil, err.Error())
		return
	}
	imported := h.service.BulkImportShifts(tenantOf(c), text)
	standardResponse(c, http.StatusOK, "ok", gin.H{"imported": imported}, "")
}

// RemoveShift deletes a shift.
func (h *HTTPHandler) RemoveShift(c *gin.Context) {
	if err := h.service.RemoveShift(tenantOf(c), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "deleted", nil, "")
}

// GetSchedule returns the final schedule projection.
func (h *HTTPHandler) GetSchedule(c *gin.Context) {
	standardResponse(c, http.StatusOK, "ok", h.service.Schedule(tenantOf(c)), "")
}

// ExportScheduleCSV downloads the final schedule as CSV.
func (h *HTTPHandler) ExportScheduleCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=holiday_schedule.csv")

	if err := export.ScheduleCSV(c.Writer, h.service.Schedule(tenantOf(c))); err != nil {
		logger.Errorf("Error writing schedule CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

// ExportScheduleXLSX downloads the final schedule as an Excel workbook.
func (h *HTTPHandler) ExportScheduleXLSX(c *gin.Context) {
	data, err := export.ScheduleXLSX(h.service.Schedule(tenantOf(c)))
	if err != nil {
		logger.Errorf("Error building schedule workbook: %v", err)
		c.String(http.StatusInternalServerError, "Error writing workbook")
		return
	}
	c.Header("Content-Disposition", "attachment;filename=holiday_schedule.xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// EditImage forwards an uploaded photo and instruction to the image service
// and returns the edited image as is.
func (h *HTTPHandler) EditImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, imageedit.ErrEmptyImage.Error())
		return
	}
	defer file.Close()

	data, err := readUpload(file)
	if err != nil {
		standardResponse(c, uploadStatus(err), "error", nil, err.Error())
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	res, err := h.editor.Edit(c.Request.Context(), tenantOf(c), imageedit.Request{
		Image:    data,
		MIMEType: mimeType,
		Prompt:   c.PostForm("prompt"),
	})
	if err != nil {
		errorResponse(c, err)
		return
	}

	outType := res.MIMEType
	if outType == "" {
		outType = http.DetectContentType(res.Image)
	}
	c.Header("Content-Disposition", "attachment;filename=edited-image")
	c.Data(http.StatusOK, outType, res.Image)
}

// ResetSession drops everything the tenant has entered.
func (h *HTTPHandler) ResetSession(c *gin.Context) {
	h.service.ClearSession(tenantOf(c))
	standardResponse(c, http.StatusOK, "ok", nil, "")
}
