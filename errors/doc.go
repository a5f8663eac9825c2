// Package errors provides the structured error type used across extkit.
//
// Every failure surfaced by the registries and the store is an *AppError
// carrying a machine-readable ErrorCode, an HTTP status for the catalog
// server and structured details. AppError.Is matches on the code, so a
// package can export sentinel values and callers can use errors.Is:
//
//	if errors.Is(err, extension.ErrExtensionNotLoaded) { ... }
package errors
