package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shiftdraw/internal/imageedit"
	"shiftdraw/internal/models"
	"shiftdraw/internal/services"
)

const testTemplates = `
{{define "layout.html"}}<html><title>{{.title}}</title>{{.PageContent}}</html>{{end}}
{{define "index.html"}}{{range .Summary}}{{.Label}}:{{.People}};{{end}}{{end}}
{{define "schedule_print.html"}}{{range .Schedule}}<tr>{{.ShiftName}}|{{if .Drawn}}{{.PersonName}}{{else}}{{$.Placeholder}}{{end}}</tr>{{end}}{{end}}
`

type echoEditor struct{}

func (echoEditor) Edit(_ context.Context, req imageedit.Request) (*imageedit.Result, error) {
	return &imageedit.Result{Image: append([]byte("edited:"), req.Image...), MIMEType: "image/png"}, nil
}

type client struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newClient(t *testing.T, editor imageedit.Editor) *client {
	gin.SetMode(gin.TestMode)
	service := services.NewLotteryService(services.WithRandSeed(7), services.WithRevealDelay(0))
	h := NewHTTPHandler(service, imageedit.NewGuard(editor), template.Must(template.New("").Parse(testTemplates)))

	r := gin.New()
	h.RegisterPublicRoutes(r)
	tenant := r.Group("/")
	tenant.Use(h.TenantMiddleware())
	h.RegisterTenantRoutes(tenant)
	return &client{t: t, router: r}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == tenantCookie {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) json(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestTenantMiddleware_IssuesCookie(t *testing.T) {
	c := newClient(t, echoEditor{})
	w := c.json(http.MethodGet, "/api/people", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, c.cookie)
	first := c.cookie.Value

	c.json(http.MethodGet, "/api/people", nil)
	assert.Equal(t, first, c.cookie.Value)
}

func TestPublicRoutes(t *testing.T) {
	c := newClient(t, echoEditor{})
	w := c.json(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, c.cookie, "public routes do not assign tenants")

	var decks []struct {
		Group models.Group  `json:"group"`
		Size  int           `json:"size"`
		Cards []models.Card `json:"cards"`
	}
	decode(t, c.json(http.MethodGet, "/api/decks", nil), &decks)
	require.Len(t, decks, 2)
	assert.Equal(t, 11, decks[0].Size)
	assert.Len(t, decks[1].Cards, 7)
}

func TestPeopleEndpoints(t *testing.T) {
	c := newClient(t, echoEditor{})

	w := c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "camera"})
	require.Equal(t, http.StatusCreated, w.Code)
	var alice models.Person
	decode(t, w, &alice)
	assert.Equal(t, "Alice", alice.Name)

	w = c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "engineer"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.json(http.MethodPost, "/api/people", gin.H{"name": "Zed", "group": "sales"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.form("/api/people/bulk", url.Values{"text": {"Bob,攝\nCarol,工\nBob,eng"}, "group": {"engineer"}})
	require.Equal(t, http.StatusOK, w.Code)
	var report services.BulkAddReport
	decode(t, w, &report)
	assert.Len(t, report.Added, 2)
	assert.Equal(t, []string{"Bob"}, report.Duplicates)

	var roster []services.RosterEntry
	decode(t, c.json(http.MethodGet, "/api/people", nil), &roster)
	assert.Len(t, roster, 3)
}

func TestBulkUploadFile(t *testing.T) {
	c := newClient(t, echoEditor{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "people.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "Dave，工\nErin\n")
	require.NoError(t, mw.WriteField("group", "camera"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/people/bulk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := c.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var report services.BulkAddReport
	decode(t, w, &report)
	require.Len(t, report.Added, 2)
	assert.Equal(t, models.GroupEngineer, report.Added[0].Group)
	assert.Equal(t, models.GroupCamera, report.Added[1].Group)
}

func TestBulkUploadTooLarge(t *testing.T) {
	limit := maxUploadBytes
	maxUploadBytes = 16
	t.Cleanup(func() { maxUploadBytes = limit })

	c := newClient(t, echoEditor{})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "people.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "Alice\nBob\nCarol\nDave\n")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/people/bulk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	assert.Equal(t, http.StatusRequestEntityTooLarge, c.do(req).Code)

	var roster []services.RosterEntry
	decode(t, c.json(http.MethodGet, "/api/people", nil), &roster)
	assert.Empty(t, roster)
}

func TestDrawFlow(t *testing.T) {
	c := newClient(t, echoEditor{})
	for i := 1; i <= 8; i++ {
		w := c.json(http.MethodPost, "/api/people", gin.H{"name": fmt.Sprintf("eng-%d", i), "group": "engineer"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := c.json(http.MethodPost, "/api/draw/engineer", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w, nil)
	assert.Contains(t, env.Error, "8 people pending, 7 cards available")

	var roster []services.RosterEntry
	decode(t, c.json(http.MethodGet, "/api/people", nil), &roster)
	last := roster[len(roster)-1]
	require.Equal(t, http.StatusOK, c.json(http.MethodDelete, "/api/people/"+last.ID, nil).Code)

	w = c.json(http.MethodPost, "/api/draw/engineer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var drawn struct {
		Drawn int `json:"drawn"`
	}
	decode(t, w, &drawn)
	assert.Equal(t, 7, drawn.Drawn)

	var board services.Board
	decode(t, c.json(http.MethodGet, "/api/board/engineer", nil), &board)
	assert.True(t, board.AllDrawn)
	assert.Equal(t, 0, board.RemainingCards)
	for _, slot := range board.Slots {
		assert.True(t, slot.FaceUp)
	}

	w = c.json(http.MethodPost, "/api/draw/engineer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &drawn)
	assert.Equal(t, 0, drawn.Drawn)

	assert.Equal(t, http.StatusBadRequest, c.json(http.MethodPost, "/api/draw/sales", nil).Code)

	var groups []services.GroupResults
	decode(t, c.json(http.MethodGet, "/api/results", nil), &groups)
	require.Len(t, groups, 2)
	assert.Len(t, groups[1].Results, 7)
	assert.Equal(t, 1, groups[1].Results[0].Card.Rank)

	w = c.json(http.MethodGet, "/api/results.csv", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8, strings.Count(w.Body.String(), "\n"))
}

func TestRemoveNeedsConfirmation(t *testing.T) {
	c := newClient(t, echoEditor{})
	var alice models.Person
	decode(t, c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "camera"}), &alice)
	require.Equal(t, http.StatusOK, c.json(http.MethodPost, "/api/draw/camera", nil).Code)

	assert.Equal(t, http.StatusConflict, c.json(http.MethodDelete, "/api/people/"+alice.ID, nil).Code)
	assert.Equal(t, http.StatusOK, c.json(http.MethodDelete, "/api/people/"+alice.ID+"?confirm=true", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.json(http.MethodDelete, "/api/people/"+alice.ID+"?confirm=true", nil).Code)
}

func TestShiftsAndSchedule(t *testing.T) {
	c := newClient(t, echoEditor{})

	var alice models.Person
	decode(t, c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "engineer"}), &alice)
	require.Equal(t, http.StatusOK, c.json(http.MethodPost, "/api/draw/engineer", nil).Code)
	var roster []services.RosterEntry
	decode(t, c.json(http.MethodGet, "/api/people", nil), &roster)
	aliceCard := roster[0].Card.ID

	w := c.json(http.MethodPost, "/api/shifts", gin.H{"name": "除夕", "requiredCard": aliceCard})
	require.Equal(t, http.StatusCreated, w.Code)
	w = c.json(http.MethodPost, "/api/shifts", gin.H{"name": "初一", "group": "camera", "rank": "joker"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = c.json(http.MethodPost, "/api/shifts", gin.H{"name": "初二", "requiredCard": "H-99"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.form("/api/shifts/bulk", url.Values{"text": {"班次,組別,號碼\n初三,攝,12\nbroken"}})
	require.Equal(t, http.StatusOK, w.Code)
	var imported struct {
		Imported []models.ShiftDefinition `json:"imported"`
	}
	decode(t, w, &imported)
	require.Len(t, imported.Imported, 1)
	assert.Equal(t, "S-10", imported.Imported[0].RequiredCard)

	var schedule []services.ScheduleEntry
	decode(t, c.json(http.MethodGet, "/api/schedule", nil), &schedule)
	require.Len(t, schedule, 3)
	assert.Equal(t, "Alice", schedule[0].PersonName)
	assert.Equal(t, services.NotDrawnPlaceholder, schedule[1].PersonName)

	first := c.json(http.MethodGet, "/api/schedule.csv", nil).Body.String()
	second := c.json(http.MethodGet, "/api/schedule.csv", nil).Body.String()
	assert.Equal(t, first, second)

	w = c.json(http.MethodGet, "/api/schedule.xlsx", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	page := c.json(http.MethodGet, "/schedule/print", nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "<tr>除夕|Alice</tr>")
	assert.Contains(t, page.Body.String(), "<tr>初一|"+services.NotDrawnPlaceholder+"</tr>")

	require.Equal(t, http.StatusOK, c.json(http.MethodDelete, "/api/shifts/"+imported.Imported[0].ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.json(http.MethodDelete, "/api/shifts/"+imported.Imported[0].ID, nil).Code)
}

func TestIndexPage(t *testing.T) {
	c := newClient(t, echoEditor{})
	c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "camera"})

	w := c.json(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "攝影班:1;工程班:0;")
}

func imageUpload(t *testing.T, prompt string, image []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("prompt", prompt))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/image/edit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestEditImage(t *testing.T) {
	t.Run("payload passes through", func(t *testing.T) {
		c := newClient(t, echoEditor{})
		w := c.do(imageUpload(t, "add lanterns", []byte("raw")))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "edited:raw", w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	})

	t.Run("missing image", func(t *testing.T) {
		c := newClient(t, echoEditor{})
		w := c.do(imageUpload(t, "add lanterns", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing prompt", func(t *testing.T) {
		c := newClient(t, echoEditor{})
		w := c.do(imageUpload(t, "", []byte("raw")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized image is refused", func(t *testing.T) {
		limit := maxUploadBytes
		maxUploadBytes = 8
		t.Cleanup(func() { maxUploadBytes = limit })

		c := newClient(t, echoEditor{})
		w := c.do(imageUpload(t, "add lanterns", []byte("123456789")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		w = c.do(imageUpload(t, "add lanterns", []byte("12345678")))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "edited:12345678", w.Body.String())
	})

	t.Run("service failure is surfaced", func(t *testing.T) {
		c := newClient(t, imageedit.Disabled{})
		w := c.do(imageUpload(t, "add lanterns", []byte("raw")))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		env := decode(t, w, nil)
		assert.Contains(t, env.Error, imageedit.ErrMissingAPIKey.Error())
	})
}

func TestResetSession(t *testing.T) {
	c := newClient(t, echoEditor{})
	c.json(http.MethodPost, "/api/people", gin.H{"name": "Alice", "group": "camera"})
	require.Equal(t, http.StatusOK, c.json(http.MethodPost, "/api/session/reset", nil).Code)

	var roster []services.RosterEntry
	decode(t, c.json(http.MethodGet, "/api/people", nil), &roster)
	assert.Empty(t, roster)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&models.DuplicateNameError{Name: "x"}, http.StatusConflict},
		{&models.DeckExhaustedError{}, http.StatusUnprocessableEntity},
		{&models.InvalidCardIDError{}, http.StatusBadRequest},
		{&models.ConflictError{}, http.StatusConflict},
		{models.ErrConfirmationRequired, http.StatusConflict},
		{models.ErrDrawInProgress, http.StatusTooManyRequests},
		{imageedit.ErrEditInProgress, http.StatusTooManyRequests},
		{&models.ExternalServiceError{Op: "x"}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", models.ErrPersonNotFound), http.StatusNotFound},
		{fmt.Errorf("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
