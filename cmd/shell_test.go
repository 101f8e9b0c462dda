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
	"testing"

	"github.com/rcaelers/blecentral/ble"
	"github.com/rcaelers/blecentral/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*shellSession, *fakeTransport, *bytes.Buffer) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	transport := newFakeTransport()
	var out bytes.Buffer
	return newShellSession(ble.NewDevice("01:23:45:67:89:ab", transport), cfg, &out), transport, &out
}

func TestShellRead(t *testing.T) {
	session, _, out := newTestSession(t)

	quit, err := session.execute("read battery")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "64\n", out.String())
}

func TestShellCharacteristics(t *testing.T) {
	session, _, out := newTestSession(t)

	_, err := session.execute("chars")
	require.NoError(t, err)
	assert.Equal(t, "0x0010 00002a19-0000-1000-8000-00805f9b34fb\n"+
		"0x0020 a1e8f5b1-696b-4e4c-87c6-69dfe0b0093b\n", out.String())
}

func TestShellWrite(t *testing.T) {
	session, transport, _ := newTestSession(t)

	_, err := session.execute("write sensor 0102")
	require.NoError(t, err)
	_, err = session.execute("write sensor 03 req")
	require.NoError(t, err)

	assert.Equal(t, []fakeWrite{
		{handle: 0x20, value: []byte{0x01, 0x02}, wait: false},
		{handle: 0x20, value: []byte{0x03}, wait: true},
	}, transport.recordedWrites())

	_, err = session.execute("write sensor 03 later")
	assert.Error(t, err)
}

func TestShellSubscribe(t *testing.T) {
	session, transport, out := newTestSession(t)

	_, err := session.execute("sub sensor")
	require.NoError(t, err)
	_, err = session.execute("sub sensor")
	require.NoError(t, err)
	_, err = session.execute("sub sensor ind")
	require.NoError(t, err)

	assert.Equal(t, []fakeWrite{
		{handle: 0x21, value: []byte{0x01, 0x00}, wait: false},
		{handle: 0x21, value: []byte{0x02, 0x00}, wait: false},
	}, transport.recordedWrites())

	transport.emit(0x20, []byte{0xCA, 0xFE})
	assert.Equal(t, "notification 0x0020: cafe\n", out.String())
}

func TestShellRSSI(t *testing.T) {
	session, _, out := newTestSession(t)

	_, err := session.execute("rssi")
	require.NoError(t, err)
	assert.Equal(t, "-70 dBm\n", out.String())
}

func TestShellCommands(t *testing.T) {
	session, _, out := newTestSession(t)

	quit, err := session.execute("   ")
	assert.NoError(t, err)
	assert.False(t, quit)

	_, err = session.execute("help")
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Commands:")

	_, err = session.execute("frobnicate")
	assert.Error(t, err)

	_, err = session.execute("read")
	assert.Error(t, err)

	quit, err = session.execute("quit")
	assert.NoError(t, err)
	assert.True(t, quit)
}

func TestShellDisconnectDropsSubscriptions(t *testing.T) {
	session, transport, out := newTestSession(t)

	_, err := session.execute("sub battery")
	require.NoError(t, err)

	require.NoError(t, session.device.Disconnect())
	transport.emit(0x10, []byte{0x01})

	assert.Empty(t, out.String())
	assert.True(t, transport.closed)
}
