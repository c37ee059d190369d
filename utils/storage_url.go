package utils

import (
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL turns a stored object key into a URL the counter app can load.
// STORAGE_ACCESS_BASE_URL wins when set and may carry an {objectKey} placeholder.
func BuildObjectAccessURL(objectKey string) string {
	if objectKey == "" {
		return ""
	}
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	gcsBucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsBucket != "" {
		host := strings.TrimSpace(os.Getenv("GCS_URL"))
		if host == "" {
			host = "storage.googleapis.com"
		}
		return "https://" + host + "/" + gcsBucket + "/" + objectKey
	}

	return objectKey
}
