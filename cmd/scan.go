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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/spf13/cobra"
)

type scanCommand struct {
	*baseCommand

	duration time.Duration
	service  string
}

func newScanCommand() *scanCommand {
	c := &scanCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Example: `blecentral scan
blecentral scan --duration=30s
blecentral scan --service=180d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScan()
		},
	})

	c.cmd.Flags().DurationVarP(&c.duration, "duration", "d", 30*time.Second, "Duration of the BLE scan")
	c.cmd.Flags().StringVarP(&c.service, "service", "s", "", "Only show devices advertising this service")

	return c
}

func (c *scanCommand) runScan() error {
	var service ble.UUID
	if c.service != "" {
		uuid, err := ble.ParseUUID(c.service)
		if err != nil {
			return errors.Wrap(err, "invalid service UUID")
		}
		service = uuid
	}

	out := c.cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for BLE devices...\n")

	bleClient, err := newClient()
	if err != nil {
		return errors.Wrap(err, "failed to create new BLE client")
	}

	err = bleClient.Scan(c.duration, func(adv ble.Advertisement) {
		if line, ok := formatAdvertisement(adv, service); ok {
			fmt.Fprintln(out, line)
		}
	})

	switch errors.Cause(err) {
	case context.DeadlineExceeded:
		return nil
	case context.Canceled:
		fmt.Fprintf(out, "Canceled..\n")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to perform BLE scan")
	}
	return nil
}

// formatAdvertisement renders an advertisement, or reports false when it
// does not advertise service.
func formatAdvertisement(adv ble.Advertisement, service ble.UUID) (string, bool) {
	services := make([]string, 0, len(adv.Services))
	found := service == ""
	for _, s := range adv.Services {
		uuid, err := ble.ParseUUID(s)
		if err != nil {
			services = append(services, s)
			continue
		}
		if uuid == service {
			found = true
		}
		services = append(services, uuid.Short())
	}
	if !found {
		return "", false
	}

	line := fmt.Sprintf("%s : %s (%d dBm)", adv.Addr, adv.Name, adv.RSSI)
	if len(services) > 0 {
		line += " [" + strings.Join(services, ", ") + "]"
	}
	return line, true
}
