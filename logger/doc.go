// Package logger provides structured logging for extkit using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with structured fields. *Logger satisfies the
// extension.Logger collaborator, so the registries and the store log through
// it unless another sink is injected.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("extension")
//	log.Debug("Registered extension", logger.Fields(logger.FieldExtension, "stripe"))
package logger
