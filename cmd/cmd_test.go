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

package cmd

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	batteryUUID = ble.MustParseUUID("2a19")
	sensorUUID  = ble.MustParseUUID("a1e8f5b1-696b-4e4c-87c6-69dfe0b0093b")
)

type fakeWrite struct {
	handle ble.Handle
	value  []byte
	wait   bool
}

// fakeTransport simulates a peripheral with a battery level and a custom
// sensor characteristic.
type fakeTransport struct {
	lock    sync.Mutex
	values  map[ble.Handle][]byte
	writes  []fakeWrite
	handler ble.NotificationHandler
	closed  bool
	onWrite func(handle ble.Handle, value []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		values: map[ble.Handle][]byte{0x10: {0x64}, 0x20: {0xAA, 0xBB}},
	}
}

func (t *fakeTransport) DiscoverCharacteristics() (map[ble.UUID]ble.Characteristic, error) {
	return map[ble.UUID]ble.Characteristic{
		batteryUUID: {UUID: batteryUUID, Handle: 0x10},
		sensorUUID:  {UUID: sensorUUID, Handle: 0x20},
	}, nil
}

func (t *fakeTransport) ReadAttribute(handle ble.Handle) ([]byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	value, ok := t.values[handle]
	if !ok {
		return nil, errors.New("read not permitted")
	}
	return value, nil
}

func (t *fakeTransport) WriteAttribute(handle ble.Handle, value []byte, wait bool) error {
	t.lock.Lock()
	t.writes = append(t.writes, fakeWrite{handle: handle, value: value, wait: wait})
	onWrite := t.onWrite
	t.lock.Unlock()

	if onWrite != nil {
		go onWrite(handle, value)
	}
	return nil
}

func (t *fakeTransport) SetNotificationHandler(h ble.NotificationHandler) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.handler = h
}

func (t *fakeTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) ReadRSSI() (int, error) {
	return -70, nil
}

func (t *fakeTransport) emit(handle ble.Handle, value []byte) {
	t.lock.Lock()
	h := t.handler
	t.lock.Unlock()
	h.HandleNotification(handle, value)
}

func (t *fakeTransport) recordedWrites() []fakeWrite {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]fakeWrite(nil), t.writes...)
}

type fakeClient struct {
	transport      *fakeTransport
	advertisements []ble.Advertisement
	addresses      []string
	names          []string
}

func (c *fakeClient) ConnectName(name string, timeout time.Duration) (*ble.Device, error) {
	c.names = append(c.names, name)
	return ble.NewDevice("01:23:45:67:89:ab", c.transport), nil
}

func (c *fakeClient) ConnectAddress(address string, timeout time.Duration) (*ble.Device, error) {
	c.addresses = append(c.addresses, address)
	return ble.NewDevice(address, c.transport), nil
}

func (c *fakeClient) Scan(duration time.Duration, handler ble.AdvertisementHandler) error {
	for _, adv := range c.advertisements {
		handler(adv)
	}
	return errors.Wrap(context.DeadlineExceeded, "scan")
}

const testConfig = `
timeout: 5s
log_level: error
characteristics:
  battery: 2a19
  sensor: a1e8f5b1-696b-4e4c-87c6-69dfe0b0093b
`

func useClient(t *testing.T, client ble.Client) {
	previous := newClient
	newClient = func() (ble.Client, error) {
		return client, nil
	}
	t.Cleanup(func() {
		newClient = previous
	})
}

func runCli(t *testing.T, args ...string) (string, error) {
	dir, err := ioutil.TempDir("", "blecentral")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	filename := filepath.Join(dir, "config.yaml")
	require.NoError(t, ioutil.WriteFile(filename, []byte(testConfig), 0600))

	var out bytes.Buffer
	cli := NewCli()
	cli.cmd.SetOutput(&out)
	cli.cmd.SetArgs(append([]string{"--config", filename}, args...))

	err = cli.cmd.Execute()
	return out.String(), err
}

func TestReadCommand(t *testing.T) {
	client := &fakeClient{transport: newFakeTransport()}
	useClient(t, client)

	out, err := runCli(t, "read", "--address", "01:23:45:67:89:ab", "battery")
	require.NoError(t, err)

	assert.Contains(t, out, "00002a19-0000-1000-8000-00805f9b34fb: 64")
	assert.Equal(t, []string{"01:23:45:67:89:ab"}, client.addresses)
	assert.True(t, client.transport.closed)
}

func TestReadCommandByName(t *testing.T) {
	client := &fakeClient{transport: newFakeTransport()}
	useClient(t, client)

	out, err := runCli(t, "read", "--name", "Thingy", sensorUUID.String())
	require.NoError(t, err)

	assert.Contains(t, out, "aabb")
	assert.Equal(t, []string{"Thingy"}, client.names)
}

func TestReadCommandRequiresDevice(t *testing.T) {
	useClient(t, &fakeClient{transport: newFakeTransport()})

	_, err := runCli(t, "read", "battery")
	assert.Error(t, err)
}

func TestReadCommandUnknownCharacteristic(t *testing.T) {
	useClient(t, &fakeClient{transport: newFakeTransport()})

	_, err := runCli(t, "read", "--address", "01:23:45:67:89:ab", "180f")
	require.Error(t, err)
	assert.True(t, ble.IsNotFound(err))
}

func TestWriteCommand(t *testing.T) {
	client := &fakeClient{transport: newFakeTransport()}
	useClient(t, client)

	_, err := runCli(t, "write", "-a", "01:23:45:67:89:ab", "--response", "sensor", "0x0102")
	require.NoError(t, err)

	assert.Equal(t, []fakeWrite{{handle: 0x20, value: []byte{0x01, 0x02}, wait: true}}, client.transport.recordedWrites())
}

func TestWriteCommandInvalidValue(t *testing.T) {
	client := &fakeClient{transport: newFakeTransport()}
	useClient(t, client)

	_, err := runCli(t, "write", "-a", "01:23:45:67:89:ab", "sensor", "xyz")
	assert.Error(t, err)
	assert.Empty(t, client.transport.recordedWrites())
}

func TestListenCommandStopsAfterCount(t *testing.T) {
	transport := newFakeTransport()
	transport.onWrite = func(handle ble.Handle, value []byte) {
		for i := 0; i < 3; i++ {
			transport.emit(handle-1, []byte{byte(i)})
		}
	}
	useClient(t, &fakeClient{transport: transport})

	_, err := runCli(t, "listen", "-a", "01:23:45:67:89:ab", "--indication", "--count", "3", "sensor")
	require.NoError(t, err)

	assert.Equal(t, []fakeWrite{{handle: 0x21, value: []byte{0x02, 0x00}, wait: false}}, transport.recordedWrites())
}

func TestListenDropsValuesAfterReturning(t *testing.T) {
	transport := newFakeTransport()
	transport.onWrite = func(handle ble.Handle, value []byte) {
		transport.emit(handle-1, []byte{0x00})
	}
	device := ble.NewDevice("01:23:45:67:89:ab", transport)

	c := newListenCommand()
	c.count = 1
	require.NoError(t, c.listen(device, []ble.UUID{sensorUUID}, ioutil.Discard, make(chan struct{})))

	// The subscription outlives listen until the device disconnects.
	delivered := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			transport.emit(0x20, []byte{byte(i)})
		}
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("notification delivery blocked after listen returned")
	}
}

func TestScanCommand(t *testing.T) {
	useClient(t, &fakeClient{advertisements: []ble.Advertisement{
		{Addr: "aa:bb:cc:dd:ee:01", Name: "Thingy", RSSI: -60, Services: []string{"180d"}},
		{Addr: "aa:bb:cc:dd:ee:02", Name: "Other", RSSI: -80},
	}})

	out, err := runCli(t, "scan", "--service", "180d")
	require.NoError(t, err)

	assert.Contains(t, out, "aa:bb:cc:dd:ee:01 : Thingy (-60 dBm) [180d]")
	assert.NotContains(t, out, "Other")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"0a1b", []byte{0x0a, 0x1b}},
		{"0x0A1B", []byte{0x0a, 0x1b}},
		{"0a:1b:2c", []byte{0x0a, 0x1b, 0x2c}},
		{"", []byte{}},
	}
	for _, tt := range tests {
		got, err := parseValue(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseValue("abc")
	assert.Error(t, err)
}

func TestFormatAdvertisement(t *testing.T) {
	adv := ble.Advertisement{
		Addr:     "aa:bb:cc:dd:ee:01",
		Name:     "Thingy",
		RSSI:     -42,
		Services: []string{"fe59", "a1e8f5b1696b4e4c87c669dfe0b0093b"},
	}

	line, ok := formatAdvertisement(adv, "")
	require.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:01 : Thingy (-42 dBm) [fe59, a1e8f5b1-696b-4e4c-87c6-69dfe0b0093b]", line)

	_, ok = formatAdvertisement(adv, ble.MustParseUUID("180d"))
	assert.False(t, ok)

	_, ok = formatAdvertisement(adv, ble.MustParseUUID("fe59"))
	assert.True(t, ok)
}
