package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/services"
)

// ---------- test DB ----------

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newAPI mounts the ticket and file endpoints over real services, behind
// the identity and idempotency middleware the router installs.
func newAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)

	h := New(Deps{
		Tickets: services.NewTicketService(db, nil),
		Files:   services.NewFileService(db, t.TempDir(), 64, "/api"),
		DB:      db,
	})

	r := gin.New()
	r.Use(middleware.Identity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.FindIdempotency(ctx, db, repo.IdempotencyKey{Caller: userID, Scope: scope, Key: key}, now)
			return err == nil && rec != nil, nil
		}))
	r.POST("/tickets", h.CreateTicket)
	r.GET("/tickets", h.ListTickets)
	r.GET("/tickets/:id", h.GetTicket)
	r.PATCH("/tickets/:id", h.UpdateTicket)
	r.GET("/tickets/:id/history", h.TicketHistory)
	r.POST("/tickets/:id/messages", h.PostTicketMessage)
	r.GET("/tickets/:id/messages", h.TicketMessages)
	r.POST("/files", h.UploadFile)
	r.GET("/files", h.ListFiles)
	r.GET("/files/:id", h.GetFile)
	r.GET("/files/:id/download", h.DownloadFile)
	r.DELETE("/files/:id", h.DeleteFile)
	return r, db
}

func send(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}

// ---------- shared helpers ----------

func TestFailService_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrTicketNotFound, http.StatusNotFound, ErrCodeNotFound},
		{fmt.Errorf("x: %w", services.ErrFormNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{services.ErrFileType, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType},
		{services.ErrDuplicateSlug, http.StatusConflict, ErrCodeConflict},
		{services.ErrTransferNotPending, http.StatusConflict, ErrCodeTransferNotPending},
		{services.ErrProviderUnavailable, http.StatusServiceUnavailable, ErrCodeProviderUnavailable},
		{fmt.Errorf("%w: %w", services.ErrProviderUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout, ErrCodeProviderUnavailable},
		{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeValidation},
		{services.ErrNotStaff, http.StatusBadRequest, ErrCodeValidation},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeInternal},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeUpdateFailed},
	}
	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { failService(c, tc.err, ErrCodeUpdateFailed) })
			w := send(r, http.MethodGet, "/x", "", nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if got := decode[ErrorResponse](t, w).Code; got != tc.code {
				t.Fatalf("code=%q want %q", got, tc.code)
			}
		})
	}
}

func TestCheckETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	latest := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if checkETag(c, "tickets", "u1", 2, &latest) {
			return
		}
		c.String(http.StatusOK, "fresh")
	})

	w := send(r, http.MethodGet, "/x", "", nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || !strings.HasPrefix(etag, `W/"tickets:u1:2:`) {
		t.Fatalf("status=%d etag=%q", w.Code, etag)
	}

	w = send(r, http.MethodGet, "/x", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
}

func TestNewPagination(t *testing.T) {
	p := newPagination(2, 10, 25)
	if p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	p = newPagination(3, 10, 25)
	if p.HasNext {
		t.Fatalf("last page must not have next: %+v", p)
	}
}

// ---------- tickets ----------

func TestTickets_Lifecycle(t *testing.T) {
	r, _ := newAPI(t)
	cust := map[string]string{middleware.HeaderUserID: "cust-1"}
	agent := map[string]string{middleware.HeaderUserID: "agent-1", middleware.HeaderUserRole: "agent"}

	w := send(r, http.MethodPost, "/tickets", `{"title":"No output","description":"Panels produce nothing"}`, cust)
	if w.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	tk := decode[domain.Ticket](t, w)
	if tk.Priority != domain.PriorityMedium || tk.Category != "general" {
		t.Fatalf("defaults not applied: %+v", tk)
	}

	w = send(r, http.MethodPatch, "/tickets/"+tk.ID, `{"status":"in_progress"}`, agent)
	if w.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	if got := decode[domain.Ticket](t, w).Status; got != domain.TicketInProgress {
		t.Fatalf("status=%q", got)
	}

	w = send(r, http.MethodGet, "/tickets/"+tk.ID+"/history", "", agent)
	if w.Code != http.StatusOK {
		t.Fatalf("history status=%d", w.Code)
	}
	if hist := decode[[]domain.TicketHistory](t, w); len(hist) != 2 {
		t.Fatalf("expected created + status rows, got %d", len(hist))
	}

	w = send(r, http.MethodPost, "/tickets/"+tk.ID+"/messages", `{"message":"On my way"}`, agent)
	if w.Code != http.StatusCreated {
		t.Fatalf("post message status=%d body=%s", w.Code, w.Body.String())
	}
	if m := decode[domain.TicketMessage](t, w); !m.IsAgent {
		t.Fatalf("agent message not flagged: %+v", m)
	}

	w = send(r, http.MethodGet, "/tickets/"+tk.ID+"/messages", "", cust)
	if msgs := decode[[]domain.TicketMessage](t, w); len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	w = send(r, http.MethodGet, "/tickets/missing", "", cust)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing ticket status=%d", w.Code)
	}
}

func TestTickets_CreateValidation(t *testing.T) {
	r, _ := newAPI(t)

	// Anonymous caller without a body user id.
	w := send(r, http.MethodPost, "/tickets", `{"title":"t","description":"d"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user, got %d", w.Code)
	}

	w = send(r, http.MethodPost, "/tickets", `{"title":"t","description":"d","priority":"asap"}`,
		map[string]string{middleware.HeaderUserID: "u1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad priority, got %d", w.Code)
	}
}

func TestTickets_IdempotentReplay(t *testing.T) {
	r, db := newAPI(t)
	hdr := map[string]string{
		middleware.HeaderUserID:         "cust-9",
		middleware.HeaderIdempotencyKey: "k-1",
	}
	body := `{"title":"Battery","description":"Battery drains overnight"}`

	first := decode[domain.Ticket](t, send(r, http.MethodPost, "/tickets", body, hdr))
	w := send(r, http.MethodPost, "/tickets", body, hdr)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected replay, status=%d headers=%v", w.Code, w.Header())
	}
	if second := decode[domain.Ticket](t, w); second.ID != first.ID {
		t.Fatalf("replay returned %s, want %s", second.ID, first.ID)
	}

	var n int64
	db.Model(&domain.Ticket{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected a single ticket, got %d", n)
	}

	// Another user with the same key creates a new ticket.
	hdr[middleware.HeaderUserID] = "cust-10"
	if other := decode[domain.Ticket](t, send(r, http.MethodPost, "/tickets", body, hdr)); other.ID == first.ID {
		t.Fatalf("keys must be scoped per user")
	}
}

// ---------- files ----------

func multipartBody(t *testing.T, name, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func upload(r http.Handler, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(middleware.HeaderUserID, "cust-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFiles_UploadDownloadDelete(t *testing.T) {
	r, _ := newAPI(t)

	body, ct := multipartBody(t, "invoice.txt", "kWh: 420", map[string]string{"relatedType": "ticket", "relatedId": "t-1"})
	w := upload(r, body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status=%d body=%s", w.Code, w.Body.String())
	}
	f := decode[domain.FileUpload](t, w)
	if f.OriginalName != "invoice.txt" || f.UploadedBy != "cust-1" || f.URL != "/api/files/"+f.ID+"/download" {
		t.Fatalf("unexpected file: %+v", f)
	}

	w = send(r, http.MethodGet, "/files?relatedType=ticket&relatedId=t-1", "", nil)
	if files := decode[[]domain.FileUpload](t, w); len(files) != 1 {
		t.Fatalf("expected 1 related file, got %d", len(files))
	}

	w = send(r, http.MethodGet, "/files/"+f.ID+"/download", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "kWh: 420" {
		t.Fatalf("download status=%d body=%q", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice.txt") {
		t.Fatalf("Content-Disposition=%q", cd)
	}

	w = send(r, http.MethodDelete, "/files/"+f.ID, "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	w = send(r, http.MethodGet, "/files/"+f.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted file status=%d", w.Code)
	}
}

func TestFiles_UploadRejections(t *testing.T) {
	r, _ := newAPI(t)

	body, ct := multipartBody(t, "run.exe", "MZ", nil)
	if w := upload(r, body, ct); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("exe status=%d", w.Code)
	}

	// The test service caps files at 64 bytes.
	body, ct = multipartBody(t, "big.txt", strings.Repeat("x", 65), nil)
	if w := upload(r, body, ct); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized status=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file status=%d", w.Code)
	}
}
