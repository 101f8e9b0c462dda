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

// Package ble is a client-side abstraction of a Bluetooth Low Energy
// peripheral. Radio I/O is delegated to a Transport; this package keeps
// track of characteristic handles and subscriptions, and dispatches
// incoming notifications to registered handlers.
package ble

import (
	"time"
)

// Handle is an ATT attribute handle. Handles are assigned by the
// peripheral and are only valid for the current connection.
type Handle uint16

// Characteristic is a discovered characteristic and its value handle.
type Characteristic struct {
	UUID   UUID
	Handle Handle
}

// NotificationHandler receives notification and indication values.
type NotificationHandler interface {
	HandleNotification(handle Handle, value []byte)
}

// NotificationHandlerFunc adapts a function to a NotificationHandler.
// Function values cannot be compared, so every registration of a
// NotificationHandlerFunc is treated as a separate subscriber.
type NotificationHandlerFunc func(handle Handle, value []byte)

func (f NotificationHandlerFunc) HandleNotification(handle Handle, value []byte) {
	f(handle, value)
}

type SubscriptionType int

const (
	SubscriptionTypeNotification SubscriptionType = iota
	SubscriptionTypeIndication
)

// Config returns the client characteristic configuration value that
// enables this subscription type.
func (t SubscriptionType) Config() []byte {
	if t == SubscriptionTypeIndication {
		return []byte{0x02, 0x00}
	}
	return []byte{0x01, 0x00}
}

func (t SubscriptionType) String() string {
	if t == SubscriptionTypeIndication {
		return "indication"
	}
	return "notification"
}

type WriteCharacteristicType int

const (
	NoResponse WriteCharacteristicType = iota
	WithResponse
)

// Transport performs the actual GATT operations for a connected
// peripheral.
type Transport interface {
	// DiscoverCharacteristics performs a full characteristic discovery.
	DiscoverCharacteristics() (map[UUID]Characteristic, error)
	ReadAttribute(handle Handle) ([]byte, error)
	WriteAttribute(handle Handle, value []byte, waitForResponse bool) error
	// SetNotificationHandler installs the receiver of unsolicited values.
	// Values must not be delivered from within WriteAttribute.
	SetNotificationHandler(h NotificationHandler)
	Close() error
}

type RSSIReader interface {
	ReadRSSI() (int, error)
}

type Bonder interface {
	Bond() error
}

type AdvertisementHandler func(adv Advertisement)

type Advertisement struct {
	Addr     string
	Name     string
	RSSI     int
	Services []string
}

type Client interface {
	ConnectName(name string, timeout time.Duration) (*Device, error)
	ConnectAddress(address string, timeout time.Duration) (*Device, error)
	Scan(duration time.Duration, handler AdvertisementHandler) error
}
