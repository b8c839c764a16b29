package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gowa-blast/config"
	"gowa-blast/internal/handler"
	"gowa-blast/internal/model"
	"gowa-blast/internal/service"
)

type stubSessions struct {
	snap       model.Snapshot
	connectErr error
	lastReq    service.ConnectRequest
}

func (s *stubSessions) Status() model.Snapshot { return s.snap }

func (s *stubSessions) Connect(ctx context.Context, req service.ConnectRequest) (model.Snapshot, error) {
	s.lastReq = req
	return s.snap, s.connectErr
}

func (s *stubSessions) Disconnect(ctx context.Context) model.Snapshot {
	return model.Snapshot{Status: model.StatusDisconnected}
}

type stubBlaster struct {
	report  model.BlastReport
	err     error
	gotRows []model.Row
	gotMode model.Mode
	gotTmpl model.TemplateRef
}

func (b *stubBlaster) Run(ctx context.Context, rows []model.Row, mode model.Mode, tmpl model.TemplateRef) (model.BlastReport, error) {
	b.gotRows = rows
	b.gotMode = mode
	b.gotTmpl = tmpl
	return b.report, b.err
}

type stubHistory struct {
	reports []model.BlastReport
}

func (h *stubHistory) ListBlasts(ctx context.Context, limit int) ([]model.BlastReport, error) {
	return h.reports, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

func newTestHandler(sessions handler.Sessions, blaster handler.Blasts, history handler.History) *handler.Handler {
	cfg := &config.Config{
		JWTSecret: "test-secret",
		AdminUser: "admin",
		AdminPass: "hunter2",
	}
	return handler.New(cfg, sessions, blaster, history, zerolog.Nop())
}

func doJSON(t *testing.T, fn echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, fn(e.NewContext(req, rec)))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func blastForm(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/blast", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func doBlast(t *testing.T, h *handler.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Blast(e.NewContext(req, rec)))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestLoginJWT(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubSessions{}, &stubBlaster{}, &stubHistory{})

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		rec, env := doJSON(t, h.LoginJWT, http.MethodPost, "/login-jwt",
			`{"username":"admin","password":"hunter2"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)

		var data struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.NotEmpty(t, data.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		rec, env := doJSON(t, h.LoginJWT, http.MethodPost, "/login-jwt",
			`{"username":"admin","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, handler.CodeUnauthorized, env.Error.Code)
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	sessions := &stubSessions{snap: model.Snapshot{
		Status:    model.StatusQRReady,
		Auxiliary: &model.Auxiliary{Kind: model.AuxQR, Value: "data:image/png;base64,xxx"},
	}}
	h := newTestHandler(sessions, &stubBlaster{}, &stubHistory{})

	rec, env := doJSON(t, h.Status, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, model.StatusQRReady, snap.Status)
	require.NotNil(t, snap.Auxiliary)
	assert.Equal(t, model.AuxQR, snap.Auxiliary.Kind)
}

func TestConnectEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("pairing variant accepted", func(t *testing.T) {
		t.Parallel()
		sessions := &stubSessions{snap: model.Snapshot{Status: model.StatusConnecting}}
		h := newTestHandler(sessions, &stubBlaster{}, &stubHistory{})

		rec, env := doJSON(t, h.Connect, http.MethodPost, "/api/connect",
			`{"mode":"code","phoneNumber":"081234567890"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, model.ConnectCode, sessions.lastReq.Mode)
		assert.Equal(t, "081234567890", sessions.lastReq.PhoneNumber)
	})

	t.Run("cloud variant resolves in place", func(t *testing.T) {
		t.Parallel()
		sessions := &stubSessions{snap: model.Snapshot{Status: model.StatusReady, IsConfigured: true}}
		h := newTestHandler(sessions, &stubBlaster{}, &stubHistory{})

		rec, _ := doJSON(t, h.Connect, http.MethodPost, "/api/connect",
			`{"mode":"cloud","accountId":"123","accessToken":"tok"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing credentials rejected", func(t *testing.T) {
		t.Parallel()
		sessions := &stubSessions{connectErr: service.ErrMissingCredentials}
		h := newTestHandler(sessions, &stubBlaster{}, &stubHistory{})

		rec, env := doJSON(t, h.Connect, http.MethodPost, "/api/connect", `{"mode":"code"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, handler.CodeMissingCredentials, env.Error.Code)
	})
}

func TestBlastEndpointValidation(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubSessions{}, &stubBlaster{}, &stubHistory{})

	t.Run("file is required", func(t *testing.T) {
		t.Parallel()
		rec, env := doBlast(t, h, blastForm(t, "", "", map[string]string{"mode": "text"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, handler.CodeFileRequired, env.Error.Code)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		rec, env := doBlast(t, h, blastForm(t, "list.pdf", "whatever", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, handler.CodeUnsupportedFormat, env.Error.Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()
		rec, env := doBlast(t, h, blastForm(t, "list.csv", "Phone,Message\n628111,hi\n",
			map[string]string{"mode": "broadcast"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, handler.CodeInvalidMode, env.Error.Code)
	})
}

func TestBlastEndpointRunsBatch(t *testing.T) {
	t.Parallel()

	blaster := &stubBlaster{report: model.BlastReport{ID: "b-1", Total: 2, Sent: 2}}
	h := newTestHandler(&stubSessions{}, blaster, &stubHistory{})

	csv := "Phone,Message\n628111,hello\n628222,world\n"
	rec, env := doBlast(t, h, blastForm(t, "recipients.csv", csv, map[string]string{"mode": "text"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.Len(t, blaster.gotRows, 2)
	assert.Equal(t, model.Row{Recipient: "628111", Message: "hello"}, blaster.gotRows[0])
	assert.Equal(t, model.ModeText, blaster.gotMode)

	var report model.BlastReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "b-1", report.ID)
}

func TestBlastEndpointTemplateFields(t *testing.T) {
	t.Parallel()

	blaster := &stubBlaster{}
	h := newTestHandler(&stubSessions{}, blaster, &stubHistory{})

	csv := "Phone\n628111\n"
	_, _ = doBlast(t, h, blastForm(t, "recipients.csv", csv, map[string]string{
		"mode":           "template",
		"templateName":   "order_update",
		"templateParams": "Budi, besok",
	}))

	assert.Equal(t, model.ModeTemplate, blaster.gotMode)
	assert.Equal(t, "order_update", blaster.gotTmpl.Name)
	assert.Equal(t, "en", blaster.gotTmpl.Language, "language defaults to en")
	assert.Equal(t, []string{"Budi", "besok"}, blaster.gotTmpl.Params)
}

func TestBlastEndpointServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode string
	}{
		{name: "not connected", err: service.ErrNotConnected, wantHTTP: http.StatusBadRequest, wantCode: handler.CodeNotConnected},
		{name: "busy", err: service.ErrBusy, wantHTTP: http.StatusConflict, wantCode: handler.CodeBlastInProgress},
		{name: "no rows", err: service.ErrNoRows, wantHTTP: http.StatusBadRequest, wantCode: handler.CodeNoValidRows},
		{name: "no template", err: service.ErrNoTemplate, wantHTTP: http.StatusBadRequest, wantCode: handler.CodeTemplateRequired},
		{name: "unsupported", err: service.ErrTemplateUnsupported, wantHTTP: http.StatusBadRequest, wantCode: handler.CodeTemplateUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestHandler(&stubSessions{}, &stubBlaster{err: tt.err}, &stubHistory{})
			rec, env := doBlast(t, h, blastForm(t, "list.csv", "Phone,Message\n628111,hi\n", nil))
			assert.Equal(t, tt.wantHTTP, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestListBlastsEndpoint(t *testing.T) {
	t.Parallel()

	history := &stubHistory{reports: []model.BlastReport{{ID: "b-2"}, {ID: "b-1"}}}
	h := newTestHandler(&stubSessions{}, &stubBlaster{}, history)

	rec, env := doJSON(t, h.ListBlasts, http.MethodGet, "/api/blasts?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Total  int                 `json:"total"`
		Blasts []model.BlastReport `json:"blasts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 2, data.Total)
	assert.Equal(t, "b-2", data.Blasts[0].ID)
}
