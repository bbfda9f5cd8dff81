package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"

	"github.com/ntdkhiem/huffzip/compression"
	"github.com/ntdkhiem/huffzip/internal/common"
	"github.com/ntdkhiem/huffzip/internal/jobs"
)

type Application struct {
	GCSClient  common.GCSClientInterface
	Jobs       jobs.Store
	CTX        *context.Context
	Bucket     string
	GCSTimeout time.Duration
}

// permanent reports whether redelivering the message could ever succeed.
func permanent(err error) bool {
	return errors.Is(err, compression.ErrEmptyInput) ||
		errors.Is(err, compression.ErrFormat) ||
		errors.Is(err, compression.ErrCorruptPayload)
}

// settle acks or nacks msg depending on err and records the outcome.
func (app *Application) settle(msg common.MessageInterface, jobID, outputPath string, err error) {
	switch {
	case err == nil:
		app.markJob(jobID, jobs.StatusCompleted, outputPath, "")
		msg.Ack()
		slog.Info("Completed processing job", "job", jobID)
	case permanent(err):
		slog.Error("Rejected job input", "job", jobID, "error", err)
		app.markJob(jobID, jobs.StatusFailed, "", err.Error())
		msg.Ack()
	default:
		msg.Nack()
	}
}

func (app *Application) markJob(jobID string, status jobs.Status, outputPath, detail string) {
	if err := app.Jobs.UpdateStatus(*app.CTX, jobID, status, outputPath, detail); err != nil {
		slog.Warn("Failed to update job status", "job", jobID, "status", status, "error", err)
	}
}

func (app *Application) compressMessageHandler(_ context.Context, msg common.MessageInterface) {
	var job common.CompressJobMsg
	if err := json.Unmarshal(msg.GetData(), &job); err != nil {
		slog.Error("Failed to unmarshal body from job message", "error", err)
		msg.Nack()
		return
	}

	slog.Info("Received job", "job", job.UID)

	// Download character frequency table from GCS
	ctx, cancel := context.WithTimeout(*app.CTX, app.GCSTimeout)
	defer cancel()

	freqTableReader, err := app.GCSClient.NewObjectReader(ctx, app.Bucket, job.FreqTablePath)
	if err != nil {
		slog.Error("Failed to download character frequency table", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	defer freqTableReader.Close()

	var freqTable compression.FrequencyTable
	if err := json.NewDecoder(freqTableReader).Decode(&freqTable); err != nil {
		slog.Error("Failed to decode character frequency table", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	slog.Debug("Downloaded character frequency table", "job", job.UID, "symbols", len(freqTable))

	ogFileReader, err := app.GCSClient.NewObjectReader(ctx, app.Bucket, job.OriginalFilePath)
	if err != nil {
		slog.Error("Failed to locate original file content", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	defer ogFileReader.Close()

	ogFileBytes, err := io.ReadAll(ogFileReader)
	if err != nil {
		slog.Error("Failed to download data from GCS", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	slog.Debug("Downloaded text data", "job", job.UID, "bytes", len(ogFileBytes))

	container, err := compression.CompressWithTable(string(ogFileBytes), freqTable)
	if err != nil {
		app.settle(msg, job.UID, "", err)
		return
	}

	compressedFilePath := common.CompressedObject(job.UID)
	wc := app.GCSClient.NewObjectWriter(ctx, app.Bucket, compressedFilePath)
	if _, err := container.WriteTo(wc); err != nil {
		slog.Error("Failed to upload compressed data to GCS", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	if err := wc.Close(); err != nil {
		slog.Error("Failed to close data compressing stream to GCS", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	slog.Debug("Uploaded compressed data to GCS", "job", job.UID, "bits", container.EncodedBitCount)

	app.settle(msg, job.UID, compressedFilePath, nil)
}

func (app *Application) decompressMessageHandler(_ context.Context, msg common.MessageInterface) {
	var job common.DecompressJobMsg
	if err := json.Unmarshal(msg.GetData(), &job); err != nil {
		slog.Error("Failed to unmarshal body from job message", "error", err)
		msg.Nack()
		return
	}

	slog.Info("Received job", "job", job.UID)

	ctx, cancel := context.WithTimeout(*app.CTX, app.GCSTimeout)
	defer cancel()

	compFile, err := app.GCSClient.NewObjectReader(ctx, app.Bucket, job.CompressedFilePath)
	if err != nil {
		slog.Error("Failed to locate compressed file content", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	defer compFile.Close()

	// an unclosed writer is discarded once ctx is canceled
	resultFilePath := common.DecompressedObject(job.UID)
	wc := app.GCSClient.NewObjectWriter(ctx, app.Bucket, resultFilePath)
	n, err := compression.Decode(wc, compFile)
	if err != nil {
		slog.Error("Failed to decompress data", "job", job.UID, "error", err)
		app.settle(msg, job.UID, "", err)
		return
	}
	if err := wc.Close(); err != nil {
		slog.Error("Failed to close data stream to GCS", "job", job.UID, "error", err)
		msg.Nack()
		return
	}
	slog.Debug("Uploaded final data to GCS", "job", job.UID, "bytes", n)

	app.settle(msg, job.UID, resultFilePath, nil)
}

func main() {
	methodFlag := flag.Bool("decompress", false, "flag to indicate this instance is for decompressing.")
	flag.Parse()

	common.SetupLogger()

	// initialize GCP services
	projectID := common.Getenv("GCP_PROJECT_ID", "")
	subID := common.Getenv("PUBSUB_SUB_ID", "")
	bucket := common.Getenv("GCS_BUCKET", "")
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
		GCSClient:  &common.RealGCSClient{Client: GCSClient},
		Jobs:       store,
		CTX:        &ctx,
		Bucket:     bucket,
		GCSTimeout: common.GetenvDuration("GCS_TIMEOUT", 50*time.Second),
	}

	sub := PUBSUBClient.Subscriber(subID)
	receiveFunc := func(ctx context.Context, msg *pubsub.Message) {
		wrappedMsg := &common.RealMessage{Msg: msg}
		if *methodFlag {
			app.decompressMessageHandler(ctx, wrappedMsg)
		} else {
			app.compressMessageHandler(ctx, wrappedMsg)
		}
	}

	if *methodFlag {
		slog.Info("Listening for a new decompressing message...")
	} else {
		slog.Info("Listening for a new compressing message...")
	}
	err = sub.Receive(ctx, receiveFunc)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Cannot process job", "error", err)
		return
	}
}
