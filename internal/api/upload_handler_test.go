package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	err      error
	filename string
	body     string
	by       string
}

func (f *fakeStarter) StartJob(_ context.Context, file io.Reader, name, importType, requestedBy string) (*ingestion.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(file)
	f.filename, f.body, f.by = name, string(b), requestedBy
	return &ingestion.Job{ID: uuid.New(), ImportType: importType, Filename: name, Status: ingestion.StatusUploaded}, nil
}

type fakeRunner struct {
	started []*ingestion.Job
}

func (f *fakeRunner) Start(job *ingestion.Job) { f.started = append(f.started, job) }

type staticTypes []string

func (s staticTypes) ImportTypes() []string { return s }

func uploadRequest(t *testing.T, target, field, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func newUploadEcho(starter *fakeStarter, runner *fakeRunner) *echo.Echo {
	e := newTestEcho()
	h := NewUploadHandler(starter, runner, staticTypes{"SHIPMENTS_V1"}, testLogger)
	e.POST("/api/admin/shipments/upload/:importType", h.HandleUpload)
	return e
}

func TestHandleUpload(t *testing.T) {
	starter, runner := &fakeStarter{}, &fakeRunner{}
	e := newUploadEcho(starter, runner)

	rec := serve(e, uploadRequest(t, "/api/admin/shipments/upload/SHIPMENTS_V1", uploadField, "jan.csv", "Date,HS Code\n"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job ingestion.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "SHIPMENTS_V1", job.ImportType)
	assert.Equal(t, "jan.csv", starter.filename)
	assert.Equal(t, "Date,HS Code\n", starter.body)
	require.Len(t, runner.started, 1)
	assert.Equal(t, job.ID, runner.started[0].ID)
}

func TestHandleUploadRejects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
		err    error
		code   int
	}{
		{name: "unknown import type", target: "/api/admin/shipments/upload/CUSTOMS_V9", field: uploadField, code: http.StatusBadRequest},
		{name: "missing file", target: "/api/admin/shipments/upload/SHIPMENTS_V1", code: http.StatusBadRequest},
		{name: "wrong field", target: "/api/admin/shipments/upload/SHIPMENTS_V1", field: "report_file", code: http.StatusBadRequest},
		{name: "start fails", target: "/api/admin/shipments/upload/SHIPMENTS_V1", field: uploadField, err: errors.New("bucket gone"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			e := newUploadEcho(&fakeStarter{err: tt.err}, runner)
			rec := serve(e, uploadRequest(t, tt.target, tt.field, "x.csv", "a,b\n"))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Empty(t, runner.started)
		})
	}
}
