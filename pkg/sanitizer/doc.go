// Package sanitizer provides input normalization applied before validation
// and storage.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Functions handle invalid input gracefully, typically by returning
// the input unchanged or an empty string rather than errors.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Text: Trim, keep internal line breaks, drop control characters
//   - Emails: Trim and lowercase
//   - URLs: Trim, default to https, lowercase the host
//   - Categories: Trim and lowercase
package sanitizer
