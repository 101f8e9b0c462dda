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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type readCommand struct {
	*baseCommand
	connectOptions
}

func newReadCommand() *readCommand {
	c := &readCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "read <characteristic>",
		Short: "Read the value of a characteristic",
		Long: `This command reads the value of a characteristic. The characteristic
is either a UUID or an alias from the configuration file.`,
		Example: `blecentral read --address 4b668b2e16e41429fca7af1b0dc50644 2a19
blecentral read --name Thingy battery`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRead(args[0])
		},
	})

	c.connectOptions.addFlags(c.cmd)

	return c
}

func (c *readCommand) runRead(characteristic string) error {
	uuid, err := c.cli.config.ResolveUUID(characteristic)
	if err != nil {
		return errors.Wrap(err, "unknown characteristic")
	}

	device, err := c.connect(&c.connectOptions)
	if err != nil {
		return err
	}
	defer disconnect(device)

	value, err := device.ReadCharacteristic(uuid)
	if err != nil {
		return errors.Wrap(err, "failed to read characteristic")
	}

	fmt.Fprintf(c.cmd.OutOrStdout(), "%s: %s\n", uuid, hex.EncodeToString(value))
	return nil
}
