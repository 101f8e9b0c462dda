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
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Device is a connected BLE peripheral, identified by its address.
type Device struct {
	address   string
	transport Transport
	registry  *NotificationRegistry
}

// NewDevice creates a Device on top of a connected transport and routes
// the transport's notifications to the device's registry.
func NewDevice(address string, transport Transport) *Device {
	d := &Device{
		address:   address,
		transport: transport,
		registry:  NewNotificationRegistry(transport),
	}
	transport.SetNotificationHandler(d.registry)
	return d
}

func (d *Device) Addr() string {
	return d.address
}

func (d *Device) Registry() *NotificationRegistry {
	return d.registry
}

// Handle returns the value handle of a characteristic.
func (d *Device) Handle(uuid UUID) (Handle, error) {
	return d.registry.ResolveHandle(uuid)
}

func (d *Device) Characteristics() ([]Characteristic, error) {
	return d.registry.Characteristics()
}

func (d *Device) ReadCharacteristic(uuid UUID) ([]byte, error) {
	handle, err := d.registry.ResolveHandle(uuid)
	if err != nil {
		return nil, err
	}

	value, err := d.transport.ReadAttribute(handle)
	if err != nil {
		return nil, transportError("failed to read BLE characteristic "+uuid.String(), err)
	}
	return value, nil
}

func (d *Device) WriteCharacteristic(uuid UUID, data []byte, writeType WriteCharacteristicType) error {
	handle, err := d.registry.ResolveHandle(uuid)
	if err != nil {
		return err
	}
	return d.WriteHandle(handle, data, writeType)
}

func (d *Device) WriteHandle(handle Handle, data []byte, writeType WriteCharacteristicType) error {
	err := d.transport.WriteAttribute(handle, data, writeType == WithResponse)
	return transportError("failed to write to BLE characteristic", err)
}

func (d *Device) Subscribe(uuid UUID, handler NotificationHandler, subType SubscriptionType) error {
	return d.registry.Subscribe(uuid, handler, subType)
}

func (d *Device) RSSI() (int, error) {
	r, ok := d.transport.(RSSIReader)
	if !ok {
		return 0, ErrNotSupported
	}

	rssi, err := r.ReadRSSI()
	if err != nil {
		return 0, transportError("failed to read RSSI", err)
	}
	return rssi, nil
}

func (d *Device) Bond() error {
	b, ok := d.transport.(Bonder)
	if !ok {
		return ErrNotSupported
	}
	return transportError("failed to bond", b.Bond())
}

// Disconnect ends the session. All handles and subscriptions are
// forgotten, even when closing the transport fails.
func (d *Device) Disconnect() error {
	jww.INFO.Printf("Disconnecting from %s\n", d.address)
	d.registry.Reset()

	if err := d.transport.Close(); err != nil {
		return errors.Wrap(transportError("failed to close connection", err), d.address)
	}
	return nil
}
