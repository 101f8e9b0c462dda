// Copyright (C) 2018 Rob Caelers <rob.caelers@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package ble

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNotSupported = errors.New("operation not supported by BLE backend")

// NotFoundError is returned when no characteristic matches a UUID, even
// after a full rediscovery.
type NotFoundError struct {
	UUID UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no characteristic found matching %s", e.UUID)
}

// TransportError wraps a failure reported by the Transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// IsNotFound reports whether err, or its cause, is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsTransportError reports whether err was caused by the Transport.
func IsTransportError(err error) bool {
	for err != nil {
		if _, ok := err.(*TransportError); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}
