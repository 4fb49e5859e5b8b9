package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoText is returned when recognition produced an empty transcript.
	ErrNoText = errors.New("no text provided")

	// ErrUnintelligible is returned when the recognizer could not make out any speech.
	ErrUnintelligible = errors.New("speech could not be understood")
)

const (
	MessageNoText         = "No text provided"
	MessageUnintelligible = "Sorry, I could not understand the audio."
)

// RequestError reports a failed call to a speech-recognition service.
type RequestError struct {
	Service string
	Err     error
}

func NewRequestError(service string, err error) *RequestError {
	return &RequestError{Service: service, Err: err}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Message maps a cycle error to the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var reqErr *RequestError

	switch {
	case errors.Is(err, ErrNoText):
		return MessageNoText
	case errors.Is(err, ErrUnintelligible):
		return MessageUnintelligible
	case errors.As(err, &reqErr):
		return fmt.Sprintf("Could not request results from %s service; %v", reqErr.Service, reqErr.Err)
	default:
		return fmt.Sprintf("An error occurred: %v", err)
	}
}
