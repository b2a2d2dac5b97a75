package domain

import (
	"errors"
	"fmt"
)

// ErrNoCompletion is returned by completion clients that got a reply without choices.
var ErrNoCompletion = errors.New("completion returned no choices")

// MalformedTopicError reports a topic token without the "<id>.<subtopic>" shape.
type MalformedTopicError struct {
	Token string
}

func (e *MalformedTopicError) Error() string {
	return fmt.Sprintf("malformed topic %q: expected <topic>.<subtopic>", e.Token)
}

// ResponseDecodeError reports a model reply whose score lines cannot be decoded.
type ResponseDecodeError struct {
	Line string
	Err  error
}

func (e *ResponseDecodeError) Error() string {
	return fmt.Sprintf("decode score line %q: %v", e.Line, e.Err)
}

func (e *ResponseDecodeError) Unwrap() error { return e.Err }

// FetchError reports an unavailable paper source for a category.
type FetchError struct {
	Category string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch category %s: %v", e.Category, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreWriteError reports a failure persisting a single digest result.
type StoreWriteError struct {
	Key     ResultKey
	ArxivID string
	Err     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write result %s for %s/%s/%s: %v",
		e.ArxivID, e.Key.UserID, e.Key.Date, e.Key.DigestName, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
