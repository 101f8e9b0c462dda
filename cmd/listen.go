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
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/cheggaaa/pb.v2"
)

type listenCommand struct {
	*baseCommand
	connectOptions

	indication bool
	count      int
	duration   time.Duration
}

type notification struct {
	handle ble.Handle
	value  []byte
}

func newListenCommand() *listenCommand {
	c := &listenCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "listen <characteristic>...",
		Short: "Print notifications of one or more characteristics",
		Long: `This command subscribes to notifications (or indications) of the given
characteristics and prints every value received. It stops after --count
values, after --duration, or when interrupted.`,
		Example: `blecentral listen --address 4b668b2e16e41429fca7af1b0dc50644 2a37
blecentral listen --name Thingy --indication --count 100 heartrate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runListen(args)
		},
	})

	c.connectOptions.addFlags(c.cmd)
	c.cmd.Flags().BoolVarP(&c.indication, "indication", "i", false, "Subscribe to indications instead of notifications")
	c.cmd.Flags().IntVar(&c.count, "count", 0, "Stop after this many values")
	c.cmd.Flags().DurationVarP(&c.duration, "duration", "d", 0, "Stop after this duration")

	return c
}

func (c *listenCommand) runListen(characteristics []string) error {
	uuids := make([]ble.UUID, 0, len(characteristics))
	for _, characteristic := range characteristics {
		uuid, err := c.cli.config.ResolveUUID(characteristic)
		if err != nil {
			return errors.Wrap(err, "unknown characteristic")
		}
		uuids = append(uuids, uuid)
	}

	device, err := c.connect(&c.connectOptions)
	if err != nil {
		return err
	}
	defer disconnect(device)

	stop := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	go func() {
		var timeout <-chan time.Time
		if c.duration > 0 {
			timeout = time.After(c.duration)
		}
		select {
		case <-interrupt:
		case <-timeout:
		case <-done:
			return
		}
		close(stop)
	}()

	return c.listen(device, uuids, c.cmd.OutOrStdout(), stop)
}

func (c *listenCommand) listen(device *ble.Device, uuids []ble.UUID, out io.Writer, stop <-chan struct{}) error {
	subType := ble.SubscriptionTypeNotification
	if c.indication {
		subType = ble.SubscriptionTypeIndication
	}

	// Values arriving after listen returns are dropped instead of blocking
	// the transport's delivery.
	finished := make(chan struct{})
	defer close(finished)

	notifications := make(chan notification, 64)
	handler := ble.NotificationHandlerFunc(func(handle ble.Handle, value []byte) {
		select {
		case notifications <- notification{handle: handle, value: value}:
		case <-stop:
		case <-finished:
		}
	})

	names := make(map[ble.Handle]ble.UUID)
	for _, uuid := range uuids {
		handle, err := device.Handle(uuid)
		if err != nil {
			return errors.Wrapf(err, "failed to find characteristic %s", uuid)
		}
		names[handle] = uuid

		err = device.Subscribe(uuid, handler, subType)
		if err != nil {
			return errors.Wrapf(err, "failed to subscribe to characteristic %s", uuid)
		}
	}

	var bar *pb.ProgressBar
	if c.count > 0 {
		bar = pb.ProgressBarTemplate(`{{ white "Values:" }} {{counters . }} {{bar . | green}}`).Start(c.count)
		defer bar.Finish()
	}

	received := 0
	for {
		select {
		case <-stop:
			return nil
		case n := <-notifications:
			received++
			line := fmt.Sprintf("%s (0x%04x): %s", names[n.handle], n.handle, hex.EncodeToString(n.value))
			if bar != nil {
				jww.DEBUG.Println(line)
				bar.Increment()
			} else {
				fmt.Fprintln(out, line)
			}
			if c.count > 0 && received >= c.count {
				return nil
			}
		}
	}
}
