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
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// NotificationRegistry maps characteristic UUIDs to value handles, keeps
// the subscription configuration written for each value handle, and
// dispatches incoming notifications to the handlers registered for it.
//
// The configuration write for a subscription is issued while the registry
// lock is held, so concurrent subscribers never write the same
// configuration twice. Handlers are invoked after the lock is released.
type NotificationRegistry struct {
	transport Transport

	tableLock       sync.Mutex
	characteristics map[UUID]Characteristic

	lock       sync.Mutex
	handlers   map[Handle][]NotificationHandler
	subscribed map[Handle][]byte
}

func NewNotificationRegistry(transport Transport) *NotificationRegistry {
	return &NotificationRegistry{
		transport:  transport,
		handlers:   make(map[Handle][]NotificationHandler),
		subscribed: make(map[Handle][]byte),
	}
}

// Discover replaces the characteristic table with a fresh discovery.
func (r *NotificationRegistry) Discover() error {
	r.tableLock.Lock()
	defer r.tableLock.Unlock()
	return r.discover()
}

func (r *NotificationRegistry) discover() error {
	characteristics, err := r.transport.DiscoverCharacteristics()
	if err != nil {
		return transportError("failed to discover characteristics", err)
	}
	jww.DEBUG.Printf("Discovered %d characteristics\n", len(characteristics))
	r.characteristics = characteristics
	return nil
}

// ResolveHandle returns the value handle of the characteristic with the
// given UUID. A miss triggers one full rediscovery before failing with a
// NotFoundError.
func (r *NotificationRegistry) ResolveHandle(uuid UUID) (Handle, error) {
	jww.DEBUG.Printf("Looking up handle for characteristic %s\n", uuid)

	r.tableLock.Lock()
	defer r.tableLock.Unlock()

	if _, ok := r.characteristics[uuid]; !ok {
		if err := r.discover(); err != nil {
			return 0, err
		}
	}

	c, ok := r.characteristics[uuid]
	if !ok {
		err := &NotFoundError{UUID: uuid}
		jww.WARN.Println(err)
		return 0, err
	}

	jww.DEBUG.Printf("Found characteristic %s at handle 0x%04x\n", uuid, c.Handle)
	return c.Handle, nil
}

// Characteristics returns the known characteristics ordered by handle,
// discovering them first if nothing is known yet.
func (r *NotificationRegistry) Characteristics() ([]Characteristic, error) {
	r.tableLock.Lock()
	defer r.tableLock.Unlock()

	if len(r.characteristics) == 0 {
		if err := r.discover(); err != nil {
			return nil, err
		}
	}

	result := make([]Characteristic, 0, len(r.characteristics))
	for _, c := range r.characteristics {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Handle < result[j].Handle
	})
	return result, nil
}

// Subscribe enables notifications or indications for a characteristic and
// registers handler, which may be nil, for its values.
//
// The configuration is written to the descriptor directly following the
// value handle. It is only written when it differs from the configuration
// last written successfully for that handle.
//
// Registering a handler that is already registered for the characteristic
// has no effect. Handlers are matched with ==, so this only applies to
// comparable handlers such as pointers; each NotificationHandlerFunc
// registration is a separate subscriber.
func (r *NotificationRegistry) Subscribe(uuid UUID, handler NotificationHandler, subType SubscriptionType) error {
	jww.INFO.Printf("Subscribing to uuid=%s with %s\n", uuid, subType)

	valueHandle, err := r.ResolveHandle(uuid)
	if err != nil {
		return err
	}

	if valueHandle == math.MaxUint16 {
		return errors.Errorf("no configuration descriptor after value handle 0x%04x of uuid=%s", valueHandle, uuid)
	}
	configHandle := valueHandle + 1
	config := subType.Config()

	r.lock.Lock()
	defer r.lock.Unlock()

	if handler != nil {
		r.addHandler(valueHandle, handler)
	}

	if bytes.Equal(r.subscribed[valueHandle], config) {
		jww.DEBUG.Printf("Already subscribed to uuid=%s\n", uuid)
		return nil
	}

	err = r.transport.WriteAttribute(configHandle, config, false)
	if err != nil {
		return transportError(fmt.Sprintf("failed to configure %s for uuid=%s", subType, uuid), err)
	}

	r.subscribed[valueHandle] = config
	jww.DEBUG.Printf("Subscribed to uuid=%s\n", uuid)
	return nil
}

func (r *NotificationRegistry) addHandler(handle Handle, handler NotificationHandler) {
	if reflect.TypeOf(handler).Comparable() {
		for _, h := range r.handlers[handle] {
			if sameHandler(h, handler) {
				return
			}
		}
	}
	r.handlers[handle] = append(r.handlers[handle], handler)
}

// sameHandler compares two handlers. A comparable struct type may still
// hold an uncomparable value in an interface field; such handlers are
// never equal.
func sameHandler(a, b NotificationHandler) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// DispatchNotification delivers a value received for handle to every
// handler registered at the time of the call. Values for handles without
// handlers are dropped.
func (r *NotificationRegistry) DispatchNotification(handle Handle, value []byte) {
	jww.INFO.Printf("Received notification on handle=0x%x, value=0x%x\n", handle, value)

	r.lock.Lock()
	handlers := make([]NotificationHandler, len(r.handlers[handle]))
	copy(handlers, r.handlers[handle])
	r.lock.Unlock()

	for _, h := range handlers {
		r.invoke(h, handle, value)
	}
}

// HandleNotification lets the registry itself be installed as a
// Transport's notification handler.
func (r *NotificationRegistry) HandleNotification(handle Handle, value []byte) {
	r.DispatchNotification(handle, value)
}

func (r *NotificationRegistry) invoke(h NotificationHandler, handle Handle, value []byte) {
	defer func() {
		if p := recover(); p != nil {
			jww.ERROR.Printf("Notification handler for handle=0x%x failed: %v\n", handle, p)
		}
	}()
	h.HandleNotification(handle, value)
}

// Reset forgets all characteristics, handlers and subscriptions. It is
// called when the connection ends.
func (r *NotificationRegistry) Reset() {
	r.tableLock.Lock()
	r.characteristics = nil
	r.tableLock.Unlock()

	r.lock.Lock()
	r.handlers = make(map[Handle][]NotificationHandler)
	r.subscribed = make(map[Handle][]byte)
	r.lock.Unlock()
}
