package common

import (
	"fmt"
	"path"
	"strings"
)

// ContainerExt is the file extension of compressed containers.
const ContainerExt = ".hfc"

// Must follow this schema to be accepted by Pub/Sub
type CompressJobMsg struct {
	UID              string `json:"UID"`
	OriginalFilePath string `json:"OriginalFilePath"`
	FreqTablePath    string `json:"FreqTablePath"`
}

// Must follow this schema to be accepted by Pub/Sub
type DecompressJobMsg struct {
	UID                string `json:"UID"`
	CompressedFilePath string `json:"CompressedFilePath"`
}

// Object layout inside the bucket, one prefix per job.

func OriginalObject(jobID, fileName string) string {
	return fmt.Sprintf("%s/original_%s", jobID, path.Base(fileName))
}

func FreqTableObject(jobID string) string {
	return fmt.Sprintf("%s/frequency_table.json", jobID)
}

func CompressedObject(jobID string) string {
	return fmt.Sprintf("%s/compressed%s", jobID, ContainerExt)
}

func UploadedContainerObject(jobID, fileName string) string {
	return fmt.Sprintf("%s/%s", jobID, path.Base(fileName))
}

func DecompressedObject(jobID string) string {
	return fmt.Sprintf("%s/file.txt", jobID)
}

func contentTypeFor(object string) string {
	switch {
	case strings.HasSuffix(object, ContainerExt):
		return "application/octet-stream"
	case strings.HasSuffix(object, ".json"):
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
