package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUniqueFilename returns a collision-free filename inside dir,
// keeping the original base name and extension for operator readability.
func GenerateUniqueFilename(dir, original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	base = SanitizeInput(base)
	if base == "" {
		base = "upload"
	}

	name := base + ext
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)
}
