//go:build openapi_disk

package api

import "os"

// openAPILoad reads the document from disk so edits show without a rebuild.
func openAPILoad() ([]byte, error) { return os.ReadFile("internal/api/openapi.yaml") }
