package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ntdkhiem/huffzip/internal/common"
	"github.com/ntdkhiem/huffzip/internal/jobs"
)

func newTestServer(t *testing.T, jobID string, pendingPolls int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /compress", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			common.WriteError(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			common.WriteError(w, "File is empty", http.StatusBadRequest)
			return
		}
		if header.Filename != "input.txt" {
			common.WriteError(w, "unexpected name "+header.Filename, http.StatusBadRequest)
			return
		}
		common.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != jobID {
			common.WriteError(w, "Job not found", http.StatusNotFound)
			return
		}
		job := jobs.Job{ID: jobID, Kind: jobs.KindCompress, Status: jobs.StatusPending}
		if polls.Add(1) > pendingPolls {
			job.Status = jobs.StatusCompleted
			job.OutputPath = jobID + "/compressed.hfc"
		}
		common.WriteJSON(w, http.StatusOK, job)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmitAndWait(t *testing.T) {
	jobID := uuid.NewString()
	srv, polls := newTestServer(t, jobID, 2)
	client := &Client{HTTP: srv.Client(), ServerURL: srv.URL, PollInterval: time.Millisecond}

	got, err := client.Submit(context.Background(), writeInput(t, "hello"), false)
	require.NoError(t, err)
	require.Equal(t, jobID, got)

	job, err := client.Wait(context.Background(), got)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusCompleted, job.Status)
	require.Equal(t, jobID+"/compressed.hfc", job.OutputPath)
	require.EqualValues(t, 3, polls.Load())
}

func TestSubmitRejected(t *testing.T) {
	srv, _ := newTestServer(t, uuid.NewString(), 0)
	client := &Client{HTTP: srv.Client(), ServerURL: srv.URL, PollInterval: time.Millisecond}

	_, err := client.Submit(context.Background(), writeInput(t, ""), false)
	require.ErrorContains(t, err, "File is empty")

	_, err = client.Submit(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), false)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStatusUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, uuid.NewString(), 0)
	client := &Client{HTTP: srv.Client(), ServerURL: srv.URL, PollInterval: time.Millisecond}

	_, err := client.Status(context.Background(), uuid.NewString())
	require.ErrorContains(t, err, "Job not found")
}

func TestWaitTimesOut(t *testing.T) {
	jobID := uuid.NewString()
	srv, _ := newTestServer(t, jobID, 1<<30)
	client := &Client{HTTP: srv.Client(), ServerURL: srv.URL, PollInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := client.Wait(ctx, jobID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
