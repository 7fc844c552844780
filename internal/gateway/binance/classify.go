package binance

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the transport-level outcome of one attempt. The HTTP client
// assigns it when the attempt fails, so classification never has to match on
// error strings.
type ErrorKind int

const (
	// KindNetwork covers dial failures, timeouts, resets and DNS errors.
	KindNetwork ErrorKind = iota
	// KindHTTP is a non-2xx response; Status carries the code.
	KindHTTP
	// KindDecode is a 2xx response whose body was not the expected kline shape.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is the typed failure of a single kline request.
type FetchError struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Endpoint   string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("kline request to %s failed: status=%d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("kline request to %s failed (%s): %v", e.Endpoint, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Disposition is the retry-policy decision for one failed attempt.
type Disposition int

const (
	RetrySame Disposition = iota
	RotateAndRetry
	SkipWindow
	AbortAll
)

func (d Disposition) String() string {
	switch d {
	case RetrySame:
		return "RETRY_SAME"
	case RotateAndRetry:
		return "ROTATE_AND_RETRY"
	case SkipWindow:
		return "SKIP_WINDOW"
	case AbortAll:
		return "ABORT_ALL"
	default:
		return "UNKNOWN"
	}
}

// Classify maps one failed attempt to a disposition and an explicit wait.
// A zero wait means the caller applies its own backoff. decodeFailures is the
// number of malformed-body failures already seen for the current window:
// a malformed body is retried once, then the window is skipped.
func Classify(err error, decodeFailures int) (Disposition, time.Duration) {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return RetrySame, 0
	}
	switch fe.Kind {
	case KindNetwork:
		return RetrySame, 0
	case KindDecode:
		if decodeFailures > 1 {
			return SkipWindow, 0
		}
		return RetrySame, 0
	case KindHTTP:
		switch {
		case fe.Status == 429:
			// Honor Retry-After exactly when the provider sent one.
			return RetrySame, fe.RetryAfter
		case fe.Status == 403 || fe.Status == 451:
			return RotateAndRetry, 0
		case fe.Status >= 500 && fe.Status <= 525:
			return RetrySame, 0
		default:
			return RetrySame, 0
		}
	default:
		return RetrySame, 0
	}
}
