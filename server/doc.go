// Package server exposes an extension store as a read-only JSON catalog
// over HTTP, using Gin served with HTTP/2 cleartext (h2c) support.
//
// # Routes
//
//   - GET /health: service health including store statistics
//   - GET /points, GET /points/:key: registered extension points
//   - GET /extensions: registered extensions, filterable with ?point= or
//     ?capability=
//   - GET /extensions/:key: a single extension
//
// Errors are rendered as RFC 7807 bodies from errors.AppError.
//
// # Middleware
//
// Built-in middleware (server/middleware): Recovery, RequestID, CORS,
// RequestLogger and Metrics.
package server
