// Package blob stores uploaded documents. Registration code depends only on
// Store; the S3 adapter is used in deployments and the memory adapter in
// tests and local development.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Store writes an object and returns the URL recorded on the attachment.
// Delete removes an object whose metadata could not be recorded; deleting a
// missing key is not an error.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Key builds an object key under prefix with a random component, keeping
// only the file extension from the client-supplied name.
func Key(prefix, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, `\`, "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	return fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), ext)
}
