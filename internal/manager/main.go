package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/ntdkhiem/huffzip/compression"
	"github.com/ntdkhiem/huffzip/internal/common"
	"github.com/ntdkhiem/huffzip/internal/jobs"
)

type Application struct {
	GCSClient         common.GCSClientInterface
	PUBSUBClient      common.PubSubClientInterface
	Jobs              jobs.Store
	CTX               *context.Context
	Bucket            string
	CompressTopicID   string
	DecompressTopicID string
	MaxUploadSize     int64
	GCSTimeout        time.Duration
}

type countResult struct {
	table compression.FrequencyTable
	err   error
}

func (app *Application) compressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, "Only POST method allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Failed to get file from form", "error", err)
		// This error is triggered when MaxBytesReader limit is exceeded
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			common.WriteError(w, "File exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	slog.Info("Processing a request for compressing")

	jobID := uuid.New().String()
	slog.Debug("Creating new job", "job", jobID, "file", header.Filename)

	// count symbol frequencies while the content streams to GCS
	pr, pw := io.Pipe()
	counted := make(chan countResult, 1)
	go func() {
		table, err := compression.CountFrequenciesFrom(io.TeeReader(file, pw))
		pw.CloseWithError(err)
		counted <- countResult{table: table, err: err}
	}()

	ctx, cancel := context.WithTimeout(*app.CTX, app.GCSTimeout)
	defer cancel()

	originalFilePath := common.OriginalObject(jobID, header.Filename)
	wc := app.GCSClient.NewObjectWriter(ctx, app.Bucket, originalFilePath)
	if _, err := io.Copy(wc, pr); err != nil {
		pr.CloseWithError(err)
		<-counted
		slog.Error("Failed to stream data to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	result := <-counted
	if result.err != nil {
		slog.Error("Failed to read file to build freq. table", "job", jobID, "error", result.err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(result.table) == 0 {
		common.WriteError(w, "File is empty", http.StatusBadRequest)
		return
	}
	if err := wc.Close(); err != nil {
		slog.Error("Failed to close data stream to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	slog.Debug(fmt.Sprintf("Uploaded %s to GCS", header.Filename), "job", jobID, "symbols", len(result.table))

	freqTableBytes, err := json.Marshal(result.table)
	if err != nil {
		slog.Error("Failed to marshal frequency table", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	freqTablePath := common.FreqTableObject(jobID)
	wc = app.GCSClient.NewObjectWriter(ctx, app.Bucket, freqTablePath)
	if _, err := io.Copy(wc, bytes.NewReader(freqTableBytes)); err != nil {
		slog.Error("Failed to stream frequency table to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := wc.Close(); err != nil {
		slog.Error("Failed to close frequency table data stream to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	slog.Debug("Uploaded frequency table to GCS", "job", jobID)

	app.submit(w, jobs.Job{ID: jobID, Kind: jobs.KindCompress, InputPath: originalFilePath}, app.CompressTopicID, common.CompressJobMsg{
		UID:              jobID,
		OriginalFilePath: originalFilePath,
		FreqTablePath:    freqTablePath,
	})
}

func (app *Application) decompressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, "Only POST method allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Failed to get file from form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			common.WriteError(w, "File exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, common.ContainerExt) {
		common.WriteError(w, "Wrong file format", http.StatusBadRequest)
		return
	}

	slog.Info("Processing a request for decompressing")

	jobID := uuid.New().String()
	slog.Debug("Creating new job", "job", jobID, "file", header.Filename)

	ctx, cancel := context.WithTimeout(*app.CTX, app.GCSTimeout)
	defer cancel()

	compressedFilePath := common.UploadedContainerObject(jobID, header.Filename)
	wc := app.GCSClient.NewObjectWriter(ctx, app.Bucket, compressedFilePath)
	if _, err := io.Copy(wc, file); err != nil {
		slog.Error("Failed to stream compressed data to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := wc.Close(); err != nil {
		slog.Error("Failed to close data stream to GCS", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	slog.Debug(fmt.Sprintf("Uploaded %s to GCS", header.Filename), "job", jobID)

	app.submit(w, jobs.Job{ID: jobID, Kind: jobs.KindDecompress, InputPath: compressedFilePath}, app.DecompressTopicID, common.DecompressJobMsg{
		UID:                jobID,
		CompressedFilePath: compressedFilePath,
	})
}

// submit records the job as pending, publishes its message and answers 202.
func (app *Application) submit(w http.ResponseWriter, job jobs.Job, topicID string, message any) {
	job.Status = jobs.StatusPending
	if err := app.Jobs.Create(*app.CTX, job); err != nil {
		slog.Error("Failed to record job", "job", job.ID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.Error("Failed to marshal MQ message", "job", job.ID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	returnedMessageID, err := app.PUBSUBClient.PublishMessage(*app.CTX, topicID, &pubsub.Message{
		Data: messageBytes,
	})
	if err != nil {
		slog.Error("Failed to send MQ message", "job", job.ID, "error", err)
		if err := app.Jobs.UpdateStatus(*app.CTX, job.ID, jobs.StatusFailed, "", "failed to queue job"); err != nil {
			slog.Error("Failed to mark job as failed", "job", job.ID, "error", err)
		}
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	slog.Debug("Sent message to Pub/Sub ", "job", job.ID, "server_generated_message_id", returnedMessageID)

	// Send 202 Accepted Code
	common.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (app *Application) jobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := uuid.Parse(jobID); err != nil {
		common.WriteError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := app.Jobs.Get(r.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		common.WriteError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to look up job", "job", jobID, "error", err)
		common.WriteError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	common.WriteJSON(w, http.StatusOK, job)
}

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/compress", app.compressHandler)
	mux.HandleFunc("/decompress", app.decompressHandler)
	mux.HandleFunc("GET /jobs/{id}", app.jobHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	return mux
}

func main() {
	common.SetupLogger()

	// initialize GCP services
	projectID := common.Getenv("GCP_PROJECT_ID", "")
	compressTopicID := common.Getenv("PUBSUB_COMPRESS_TOPIC_ID", "")
	decompressTopicID := common.Getenv("PUBSUB_DECOMPRESS_TOPIC_ID", "")
	bucket := common.Getenv("GCS_BUCKET", "")
	addr := common.Getenv("LISTEN_ADDR", ":8081")
	ctx := context.Background()

	GCSClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Cannot create new client for GCS", "error", err)
		return
	}
	defer GCSClient.Close()
	slog.Debug("Initialized a GCS client.")

	PUBSUBClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		slog.Error("Cannot create new client for Pub/Sub", "error", err)
		return
	}
	defer PUBSUBClient.Close()
	slog.Debug("Initialized a Pub/Sub client.")

	store, closeStore, err := jobs.OpenStore(ctx, common.Getenv("DATABASE_URL", ""))
	if err != nil {
		slog.Error("Cannot open job store", "error", err)
		return
	}
	defer closeStore()

	app := Application{
		GCSClient:         &common.RealGCSClient{Client: GCSClient},
		PUBSUBClient:      &common.RealPubSubClient{Client: PUBSUBClient},
		Jobs:              store,
		CTX:               &ctx,
		Bucket:            bucket,
		CompressTopicID:   compressTopicID,
		DecompressTopicID: decompressTopicID,
		MaxUploadSize:     common.GetenvInt64("MAX_UPLOAD_SIZE", 1<<30), // 1GB
		GCSTimeout:        common.GetenvDuration("GCS_TIMEOUT", 50*time.Second),
	}

	slog.Info("Listening on " + addr + "...")
	if err := http.ListenAndServe(addr, app.routes()); err != nil {
		slog.Error("Server stopped", "error", err)
	}
}
