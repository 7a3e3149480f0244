package errors

import (
	stderrors "errors"
	"fmt"
	"regexp"
)

var ErrVendorGeneration = stderrors.New("vendor generation failed")

/*
VendorGenerationError is fatal to a single call: the vendor returned an
error status, a malformed response, or content the adapter cannot parse.
*/
type VendorGenerationError struct {
	Provider string
	Model    string
	Status   int
	Err      error
}

func NewVendorError(provider, model string, err error) *VendorGenerationError {
	return &VendorGenerationError{Provider: provider, Model: model, Err: err}
}

func (e *VendorGenerationError) Error() string {
	msg := fmt.Sprintf("%s generation failed (model %s", e.Provider, e.Model)

	if e.Status != 0 {
		msg += fmt.Sprintf(", status %d", e.Status)
	}

	msg += ")"

	if e.Err != nil {
		msg += ": " + Scrub(e.Err.Error())
	}

	return msg
}

func (e *VendorGenerationError) Is(target error) bool {
	return target == ErrVendorGeneration
}

func (e *VendorGenerationError) Unwrap() error {
	return e.Err
}

/*
UnsupportedCapability is a warning, not an error path: the requested
feature is skipped and generation proceeds.
*/
type UnsupportedCapability struct {
	Provider   string
	Capability string
}

func (w *UnsupportedCapability) Error() string {
	return fmt.Sprintf("%s does not support %s; continuing without it", w.Provider, w.Capability)
}

var secretPattern = regexp.MustCompile(`(?i)(sk-[a-z0-9_\-]{8,}|bearer\s+[a-z0-9._\-]{8,}|token\s+[a-z0-9._\-]{8,}|(api[_-]?key|x-api-key|key)=[a-z0-9._\-]{8,})`)

/*
Scrub masks anything in msg that looks like a credential.
*/
func Scrub(msg string) string {
	return secretPattern.ReplaceAllStringFunc(msg, Redact)
}

/*
Redact keeps the first and last four characters of a secret.
*/
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + "…" + secret[len(secret)-4:]
}
