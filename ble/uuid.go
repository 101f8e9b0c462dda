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
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UUID is a characteristic UUID in canonical lowercase 128-bit form,
// e.g. "a1e8f5b1-696b-4e4c-87c6-69dfe0b0093b".
type UUID string

const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// ParseUUID parses a 128-bit UUID (with or without dashes) or a 16/32-bit
// short form, which is expanded onto the Bluetooth base UUID.
func ParseUUID(s string) (UUID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch len(s) {
	case 4:
		s = "0000" + s + baseUUIDSuffix
	case 8:
		s = s + baseUUIDSuffix
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return "", errors.Wrapf(err, "invalid UUID '%s'", s)
	}
	return UUID(u.String()), nil
}

func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Short returns the 16-bit form for UUIDs on the Bluetooth base UUID and
// the full form otherwise.
func (u UUID) Short() string {
	s := string(u)
	if strings.HasPrefix(s, "0000") && strings.HasSuffix(s, baseUUIDSuffix) {
		return s[4:8]
	}
	return s
}

func (u UUID) String() string {
	return string(u)
}
