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
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

type GoBleInitFunc func() (ble.Device, error)

type bleClient struct {
	device *ble.Device
}

// goBleTransport implements Transport on top of a go-ble connection.
// go-ble addresses attributes by object rather than by handle, so the
// transport keeps handle indexes of the last discovered profile.
type goBleTransport struct {
	client ble.Client

	lock            sync.Mutex
	characteristics map[Handle]*ble.Characteristic
	cccds           map[Handle]*ble.Characteristic
	descriptors     map[Handle]*ble.Descriptor
	enabled         map[Handle]bool
	handler         NotificationHandler
}

var currentDevice *ble.Device

func NewGoBleClient(init GoBleInitFunc) (*bleClient, error) {
	if currentDevice == nil {
		device, err := init()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create new BLE device")
		}
		ble.SetDefaultDevice(device)

		currentDevice = &device
	}

	return &bleClient{device: currentDevice}, nil
}

func (b *bleClient) ConnectName(name string, timeout time.Duration) (*Device, error) {
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), timeout))

	client, err := ble.Connect(ctx, func(a ble.Advertisement) bool {
		return strings.EqualFold(a.LocalName(), name)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to BLE peripheral")
	}

	return NewDevice(client.Addr().String(), newGoBleTransport(client)), nil
}

func (b *bleClient) ConnectAddress(address string, timeout time.Duration) (*Device, error) {
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), timeout))

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to BLE peripheral")
	}

	return NewDevice(address, newGoBleTransport(client)), nil
}

func (b *bleClient) Scan(duration time.Duration, handler AdvertisementHandler) (err error) {
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), duration))

	err = ble.Scan(ctx, false, b.handleAdvertisement(handler), nil)

	return err
}

func (b *bleClient) handleAdvertisement(handler AdvertisementHandler) ble.AdvHandler {
	return func(a ble.Advertisement) {
		services := []string{}
		for _, s := range a.Services() {
			services = append(services, s.String())
		}

		handler(Advertisement{Name: a.LocalName(), Addr: a.Addr().String(), RSSI: a.RSSI(), Services: services})
	}
}

func newGoBleTransport(client ble.Client) *goBleTransport {
	return &goBleTransport{
		client:  client,
		enabled: make(map[Handle]bool),
	}
}

func (t *goBleTransport) DiscoverCharacteristics() (map[UUID]Characteristic, error) {
	profile, err := t.client.DiscoverProfile(true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover profiles")
	}

	result := make(map[UUID]Characteristic)
	characteristics := make(map[Handle]*ble.Characteristic)
	cccds := make(map[Handle]*ble.Characteristic)
	descriptors := make(map[Handle]*ble.Descriptor)

	for _, s := range profile.Services {
		for _, c := range s.Characteristics {
			uuid, err := ParseUUID(c.UUID.String())
			if err != nil {
				jww.WARN.Printf("Ignoring characteristic with unusable UUID %s\n", c.UUID)
				continue
			}

			handle := Handle(c.ValueHandle)
			result[uuid] = Characteristic{UUID: uuid, Handle: handle}
			characteristics[handle] = c
			if c.CCCD != nil {
				cccds[Handle(c.CCCD.Handle)] = c
			}
			for _, d := range c.Descriptors {
				descriptors[Handle(d.Handle)] = d
			}
		}
	}

	t.lock.Lock()
	t.characteristics = characteristics
	t.cccds = cccds
	t.descriptors = descriptors
	t.lock.Unlock()

	return result, nil
}

type attribute struct {
	characteristic *ble.Characteristic
	cccdOf         *ble.Characteristic
	descriptor     *ble.Descriptor
}

func (t *goBleTransport) lookup(handle Handle) (attribute, error) {
	t.lock.Lock()
	known := t.characteristics != nil
	t.lock.Unlock()

	if !known {
		if _, err := t.DiscoverCharacteristics(); err != nil {
			return attribute{}, err
		}
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if c, ok := t.cccds[handle]; ok {
		return attribute{cccdOf: c}, nil
	}
	if c, ok := t.characteristics[handle]; ok {
		return attribute{characteristic: c}, nil
	}
	// Configuration writes address value+1, which takes precedence over
	// whatever descriptor the peripheral put there.
	if c, ok := t.characteristics[handle-1]; ok && c.CCCD != nil {
		return attribute{cccdOf: c}, nil
	}
	if d, ok := t.descriptors[handle]; ok {
		return attribute{descriptor: d}, nil
	}
	return attribute{}, errors.Errorf("unknown attribute handle 0x%04x", handle)
}

func (t *goBleTransport) ReadAttribute(handle Handle) ([]byte, error) {
	attr, err := t.lookup(handle)
	if err != nil {
		return nil, err
	}

	switch {
	case attr.characteristic != nil:
		return t.client.ReadCharacteristic(attr.characteristic)
	case attr.cccdOf != nil:
		return t.client.ReadDescriptor(attr.cccdOf.CCCD)
	default:
		return t.client.ReadDescriptor(attr.descriptor)
	}
}

func (t *goBleTransport) WriteAttribute(handle Handle, value []byte, waitForResponse bool) error {
	attr, err := t.lookup(handle)
	if err != nil {
		return err
	}

	switch {
	case attr.characteristic != nil:
		return t.client.WriteCharacteristic(attr.characteristic, value, !waitForResponse)
	case attr.cccdOf != nil:
		return t.configure(attr.cccdOf, value)
	default:
		return t.client.WriteDescriptor(attr.descriptor, value)
	}
}

// configure applies a client characteristic configuration value. go-ble
// owns the configuration descriptor, so the value is translated into
// Subscribe and Unsubscribe calls.
func (t *goBleTransport) configure(c *ble.Characteristic, value []byte) error {
	if len(value) == 0 {
		return errors.New("empty characteristic configuration")
	}

	handle := Handle(c.ValueHandle)

	t.lock.Lock()
	indication, subscribed := t.enabled[handle]
	t.lock.Unlock()

	if subscribed {
		if err := t.client.Unsubscribe(c, indication); err != nil {
			return errors.Wrap(err, "failed to unsubscribe to BLE characteristic value changes")
		}
		t.lock.Lock()
		delete(t.enabled, handle)
		t.lock.Unlock()
	}

	var ind bool
	switch {
	case value[0]&0x02 != 0:
		ind = true
	case value[0]&0x01 != 0:
		ind = false
	default:
		return nil
	}

	err := t.client.Subscribe(c, ind, func(data []byte) {
		t.notify(handle, data)
	})
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to BLE characteristic value changes")
	}

	t.lock.Lock()
	t.enabled[handle] = ind
	t.lock.Unlock()
	return nil
}

func (t *goBleTransport) notify(handle Handle, data []byte) {
	t.lock.Lock()
	h := t.handler
	t.lock.Unlock()

	if h != nil {
		h.HandleNotification(handle, data)
	}
}

func (t *goBleTransport) SetNotificationHandler(h NotificationHandler) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.handler = h
}

func (t *goBleTransport) ReadRSSI() (int, error) {
	return t.client.ReadRSSI(), nil
}

func (t *goBleTransport) Close() error {
	return t.client.CancelConnection()
}
