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
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var newClient = ble.NewClient

// connectOptions are the flags shared by all commands that talk to a
// single device. Unset flags fall back to the configuration file.
type connectOptions struct {
	timeout time.Duration
	address string
	name    string
}

func (o *connectOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVarP(&o.timeout, "timeout", "t", 0, "Timeout for connecting to device (default from config)")
	cmd.Flags().StringVarP(&o.address, "address", "a", "", "Address of device")
	cmd.Flags().StringVarP(&o.name, "name", "n", "", "Name of device")
}

func (c *baseCommand) connect(opts *connectOptions) (*ble.Device, error) {
	cfg := c.cli.config

	address, name, timeout := opts.address, opts.name, opts.timeout
	if address == "" && name == "" {
		address, name = cfg.Address, cfg.Name
	}
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	if address == "" && name == "" {
		return nil, errors.New("No device specified. Use --address or --name to specify the device")
	}

	bleClient, err := newClient()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create new BLE client")
	}

	var device *ble.Device
	if address != "" {
		jww.INFO.Printf("Connecting to device '%s'\n", address)
		device, err = bleClient.ConnectAddress(address, timeout)
	} else {
		jww.INFO.Printf("Connecting to device named '%s'\n", name)
		device, err = bleClient.ConnectName(name, timeout)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to device")
	}

	jww.DEBUG.Printf("Connected to %s\n", device.Addr())
	return device, nil
}

func disconnect(device *ble.Device) {
	if err := device.Disconnect(); err != nil {
		jww.WARN.Printf("Failed to disconnect: %v\n", err)
	}
}

// parseValue decodes a hex string such as "0a1b", "0x0a1b" or "0a:1b".
func parseValue(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.NewReplacer(":", "", " ", "", "-", "").Replace(s)

	value, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex value '%s'", s)
	}
	return value, nil
}
