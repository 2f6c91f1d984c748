// Package api carries the OpenAPI document the server exposes.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3.1 document, served verbatim at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
