package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a search run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("search-%s-%s", timestamp, suffix)
}

// ValidateRunID rejects IDs that would break URL routing
func ValidateRunID(id string) error {
	if strings.ContainsAny(id, "/: ") {
		return fmt.Errorf("run id %q cannot contain '/', ':' or spaces", id)
	}
	return nil
}
