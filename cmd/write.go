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
	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

type writeCommand struct {
	*baseCommand
	connectOptions

	response bool
}

func newWriteCommand() *writeCommand {
	c := &writeCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "write <characteristic> <value>",
		Short: "Write a hex value to a characteristic",
		Example: `blecentral write --address 4b668b2e16e41429fca7af1b0dc50644 8ec90003-f315-4f60-9fb8-838830daea50 01
blecentral write --name Thingy --response led 0x0100ff`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWrite(args[0], args[1])
		},
	})

	c.connectOptions.addFlags(c.cmd)
	c.cmd.Flags().BoolVarP(&c.response, "response", "r", false, "Wait for a write response")

	return c
}

func (c *writeCommand) runWrite(characteristic string, hexValue string) error {
	uuid, err := c.cli.config.ResolveUUID(characteristic)
	if err != nil {
		return errors.Wrap(err, "unknown characteristic")
	}
	value, err := parseValue(hexValue)
	if err != nil {
		return err
	}

	device, err := c.connect(&c.connectOptions)
	if err != nil {
		return err
	}
	defer disconnect(device)

	writeType := ble.NoResponse
	if c.response {
		writeType = ble.WithResponse
	}

	jww.INFO.Printf("Writing %d bytes to %s\n", len(value), uuid)
	err = device.WriteCharacteristic(uuid, value, writeType)
	if err != nil {
		return errors.Wrap(err, "failed to write characteristic")
	}
	return nil
}
