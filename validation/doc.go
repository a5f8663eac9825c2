// Package validation provides struct-tag and fluent validation that reports
// failures as *errors.AppError with per-field details.
//
// Besides the go-playground/validator built-ins it registers two tags:
//
//	semver  the value parses as a semantic version ("1.0" and "v2.1.3" are accepted)
//	key     the value is a registry identifier (letters, digits and . _ - : / after
//	        a leading letter or digit)
package validation
