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
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/rcaelers/blecentral/ble"
	"github.com/rcaelers/blecentral/config"
	"github.com/spf13/cobra"
)

type shellCommand struct {
	*baseCommand
	connectOptions
}

func newShellCommand() *shellCommand {
	c := &shellCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "shell",
		Short: "Interactive session with a device",
		Long: `This command connects to a device and starts an interactive session in
which characteristics can be listed, read, written and subscribed to.`,
		Example: `blecentral shell --address 4b668b2e16e41429fca7af1b0dc50644`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShell()
		},
	})

	c.connectOptions.addFlags(c.cmd)

	return c
}

func (c *shellCommand) runShell() error {
	device, err := c.connect(&c.connectOptions)
	if err != nil {
		return err
	}
	defer disconnect(device)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          device.Addr() + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("chars"),
			readline.PcItem("read"),
			readline.PcItem("write"),
			readline.PcItem("sub"),
			readline.PcItem("rssi"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to start shell")
	}
	defer rl.Close()

	session := newShellSession(device, c.cli.config, rl.Stdout())

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read input")
		}

		quit, err := session.execute(line)
		if err != nil {
			fmt.Fprintf(rl.Stdout(), "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

type shellSession struct {
	device  *ble.Device
	config  *config.Config
	out     io.Writer
	printer *notificationPrinter
}

// notificationPrinter is shared by all subscriptions of a session, so
// subscribing twice does not print values twice.
type notificationPrinter struct {
	out io.Writer
}

func (p *notificationPrinter) HandleNotification(handle ble.Handle, value []byte) {
	fmt.Fprintf(p.out, "notification 0x%04x: %s\n", handle, hex.EncodeToString(value))
}

func newShellSession(device *ble.Device, cfg *config.Config, out io.Writer) *shellSession {
	return &shellSession{
		device:  device,
		config:  cfg,
		out:     out,
		printer: &notificationPrinter{out: out},
	}
}

const shellHelp = `Commands:
  chars                              list characteristics
  read <characteristic>              read a value
  write <characteristic> <hex> [req] write a value, optionally with response
  sub <characteristic> [ind]         subscribe to notifications or indications
  rssi                               show signal strength
  quit                               end the session
`

func (s *shellSession) execute(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "help", "?":
		fmt.Fprint(s.out, shellHelp)
	case "quit", "exit":
		return true, nil
	case "chars":
		err = s.listCharacteristics()
	case "read":
		err = s.read(args)
	case "write":
		err = s.write(args)
	case "sub":
		err = s.subscribe(args)
	case "rssi":
		err = s.rssi()
	default:
		err = errors.Errorf("unknown command '%s'", cmd)
	}
	return false, err
}

func (s *shellSession) listCharacteristics() error {
	characteristics, err := s.device.Characteristics()
	if err != nil {
		return err
	}
	for _, c := range characteristics {
		fmt.Fprintf(s.out, "0x%04x %s\n", c.Handle, c.UUID)
	}
	return nil
}

func (s *shellSession) read(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: read <characteristic>")
	}
	uuid, err := s.config.ResolveUUID(args[0])
	if err != nil {
		return err
	}

	value, err := s.device.ReadCharacteristic(uuid)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n", hex.EncodeToString(value))
	return nil
}

func (s *shellSession) write(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: write <characteristic> <hex> [req]")
	}
	uuid, err := s.config.ResolveUUID(args[0])
	if err != nil {
		return err
	}
	value, err := parseValue(args[1])
	if err != nil {
		return err
	}

	writeType := ble.NoResponse
	if len(args) == 3 {
		if args[2] != "req" {
			return errors.Errorf("unknown write option '%s'", args[2])
		}
		writeType = ble.WithResponse
	}
	return s.device.WriteCharacteristic(uuid, value, writeType)
}

func (s *shellSession) subscribe(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: sub <characteristic> [ind]")
	}
	uuid, err := s.config.ResolveUUID(args[0])
	if err != nil {
		return err
	}

	subType := ble.SubscriptionTypeNotification
	if len(args) == 2 {
		if args[1] != "ind" {
			return errors.Errorf("unknown subscription option '%s'", args[1])
		}
		subType = ble.SubscriptionTypeIndication
	}
	return s.device.Subscribe(uuid, s.printer, subType)
}

func (s *shellSession) rssi() error {
	rssi, err := s.device.RSSI()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d dBm\n", rssi)
	return nil
}
