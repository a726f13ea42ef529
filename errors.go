package netguard

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the machine-readable classification of a dispatch failure. The UI
// layer shows Message/Hint and switches on Kind without inspecting internals.
type Kind string

const (
	// KindBlocked means the trust/redirect pre-flight check failed; no
	// network call was made.
	KindBlocked Kind = "blocked"
	// KindTimeout means the transport call did not complete in time.
	KindTimeout Kind = "timeout"
	// KindRedirect means a redirect was attempted or detected and blocked.
	KindRedirect Kind = "redirect_error"
	// KindHTMLResponse means HTML arrived where structured data was
	// expected, the signature of a silent redirect to a login or error page.
	KindHTMLResponse Kind = "html_response"
	// KindTransient covers network errors and 5xx/429 responses that the
	// retry controller may recover from.
	KindTransient Kind = "transient"
	// KindOther is everything else.
	KindOther Kind = "other"
)

// Error is the single error type surfaced by the dispatcher.
type Error struct {
	Kind     Kind
	Message  string
	Hint     string
	URL      string
	FinalURL string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or KindOther when err is not a
// dispatcher error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

func newBlockedError(url, reason string) *Error {
	return &Error{
		Kind:    KindBlocked,
		Message: fmt.Sprintf("request to %q blocked: %s", url, reason),
		Hint:    "the destination is not on the trusted host list; check the endpoint or the policy file",
		URL:     url,
	}
}

func newTimeoutError(url string, elapsed time.Duration, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("request to %q timed out after %s", url, elapsed.Round(time.Millisecond)),
		URL:     url,
		Err:     err,
	}
}

func newRedirectError(url, finalURL string, err error) *Error {
	return &Error{
		Kind:     KindRedirect,
		Message:  fmt.Sprintf("request to %q was redirected to %q and blocked", url, finalURL),
		Hint:     "a proxy, captive portal or hostile DNS may be rewriting traffic; verify the connection and retry",
		URL:      url,
		FinalURL: finalURL,
		Err:      err,
	}
}

func newHTMLResponseError(url string, status int) *Error {
	return &Error{
		Kind:    KindHTMLResponse,
		Message: fmt.Sprintf("request to %q returned HTML where JSON was expected (status %d)", url, status),
		Hint:    "the response looks like a login or error page reached through a silent redirect",
		URL:     url,
		Status:  status,
	}
}

func newTransientError(url string, status int, err error) *Error {
	msg := fmt.Sprintf("request to %q failed transiently", url)
	if status > 0 {
		msg = fmt.Sprintf("request to %q failed with status %d", url, status)
	}
	return &Error{
		Kind:    KindTransient,
		Message: msg,
		URL:     url,
		Status:  status,
		Err:     err,
	}
}

func newStatusError(url string, status int) *Error {
	return &Error{
		Kind:    KindOther,
		Message: fmt.Sprintf("request to %q failed with status %d", url, status),
		URL:     url,
		Status:  status,
	}
}

// retryable reports whether the retry controller should re-attempt after err.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	}
	return false
}

// redirectClass reports whether err belongs to the blocked/attempted redirect
// family that gets re-classified when retries are exhausted.
func redirectClass(err error) bool {
	switch KindOf(err) {
	case KindRedirect, KindHTMLResponse:
		return true
	}
	return false
}
