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
	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of Transport.
type MockTransport struct {
	mock.Mock
}

func (_m *MockTransport) DiscoverCharacteristics() (map[UUID]Characteristic, error) {
	ret := _m.Called()

	var r0 map[UUID]Characteristic
	if rf, ok := ret.Get(0).(func() map[UUID]Characteristic); ok {
		r0 = rf()
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[UUID]Characteristic)
	}

	return r0, ret.Error(1)
}

func (_m *MockTransport) ReadAttribute(handle Handle) ([]byte, error) {
	ret := _m.Called(handle)

	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	return r0, ret.Error(1)
}

func (_m *MockTransport) WriteAttribute(handle Handle, value []byte, waitForResponse bool) error {
	ret := _m.Called(handle, value, waitForResponse)
	return ret.Error(0)
}

func (_m *MockTransport) SetNotificationHandler(h NotificationHandler) {
	_m.Called(h)
}

func (_m *MockTransport) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

type mockCapableTransport struct {
	*MockTransport
}

func (_m mockCapableTransport) ReadRSSI() (int, error) {
	ret := _m.Called()
	return ret.Int(0), ret.Error(1)
}

func (_m mockCapableTransport) Bond() error {
	ret := _m.Called()
	return ret.Error(0)
}
