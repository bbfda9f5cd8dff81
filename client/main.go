// Command client submits files to the manager service and waits for the
// resulting job to finish.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ntdkhiem/huffzip/internal/common"
	"github.com/ntdkhiem/huffzip/internal/jobs"
)

type Client struct {
	HTTP         *http.Client
	ServerURL    string
	PollInterval time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

// Submit uploads the file at path to /compress, or /decompress when
// decompress is set, and returns the job id.
func (c *Client) Submit(ctx context.Context, path string, decompress bool) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := "/compress"
	if decompress {
		endpoint = "/decompress"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerURL+endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", responseError(resp)
	}

	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	jobID := accepted["job_id"]
	if _, err := uuid.Parse(jobID); err != nil {
		return "", fmt.Errorf("server returned invalid job id %q: %w", jobID, err)
	}
	return jobID, nil
}

// Status fetches the current record of a job.
func (c *Client) Status(ctx context.Context, jobID string) (jobs.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerURL+"/jobs/"+jobID, nil)
	if err != nil {
		return jobs.Job{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return jobs.Job{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jobs.Job{}, responseError(resp)
	}
	var job jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return jobs.Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// Wait polls the job until it leaves the pending state or ctx is done.
func (c *Client) Wait(ctx context.Context, jobID string) (jobs.Job, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		job, err := c.Status(ctx, jobID)
		if err != nil {
			return jobs.Job{}, err
		}
		if job.Status != jobs.StatusPending {
			return job, nil
		}
		slog.Debug("Job still pending", "job", jobID)
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func responseError(resp *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
}

func main() {
	server := flag.String("server", common.Getenv("MANAGER_URL", "http://127.0.0.1:8081"), "manager base URL")
	decompress := flag.Bool("decode", false, "submit a container for decompressing")
	wait := flag.Duration("wait", 0, "wait up to this long for the job to finish")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-server url] [-decode] [-wait duration] <file>\n", os.Args[0])
		os.Exit(2)
	}

	common.SetupLogger()

	client := &Client{
		HTTP:         &http.Client{Timeout: common.GetenvDuration("CLIENT_TIMEOUT", 60*time.Second)},
		ServerURL:    *server,
		PollInterval: time.Second,
	}

	ctx := context.Background()
	jobID, err := client.Submit(ctx, flag.Arg(0), *decompress)
	if err != nil {
		slog.Error("Failed to submit file", "file", flag.Arg(0), "error", err)
		os.Exit(1)
	}
	fmt.Println(jobID)

	if *wait <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	job, err := client.Wait(ctx, jobID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("Job did not finish in time", "job", jobID)
		} else {
			slog.Error("Failed to query job", "job", jobID, "error", err)
		}
		os.Exit(1)
	}
	fmt.Printf("%s %s %s\n", job.Status, job.OutputPath, job.Detail)
	if job.Status == jobs.StatusFailed {
		os.Exit(1)
	}
}
