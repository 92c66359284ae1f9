package moex

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind string

const (
	KindNetwork  Kind = "NetworkError"
	KindNotFound Kind = "NotFound"
	KindTimeout  Kind = "Timeout"
)

// FetchError is the typed failure returned by Client.Fetch.
type FetchError struct {
	Kind     Kind
	Endpoint Endpoint
	Ticker   string
	Err      error
}

func (e *FetchError) Error() string {
	target := string(e.Endpoint)
	if e.Ticker != "" {
		target += " " + e.Ticker
	}
	if e.Err == nil {
		return fmt.Sprintf("moex %s: %s", target, e.Kind)
	}
	return fmt.Sprintf("moex %s: %s: %v", target, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the fetch failure kind of err, or "" if err is not a FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
