//go:build !openapi_disk

package api

import _ "embed"

//go:embed openapi.yaml
var openAPIEmbedded []byte

func openAPILoad() ([]byte, error) { return openAPIEmbedded, nil }
