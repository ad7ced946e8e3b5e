/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/soulseek/client"
	"github.com/sabouaram/soulseek/logger"
	loglvl "github.com/sabouaram/soulseek/logger/level"
)

// cliContext carries the shared flag-derived session parameters every
// subcommand needs to open and log in a client.
type cliContext struct {
	log logger.Logger

	server   string
	username string
	password string
	timeout  time.Duration
}

func (c *cliContext) dial(ctx context.Context) (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.MinimumDiagnosticLevel = loglvl.InfoLevel

	cl := client.New(opts)
	go logEvents(c.log, cl)

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := cl.Connect(dialCtx, c.server); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.server, err)
	}
	if err := cl.Login(dialCtx, c.username, c.password); err != nil {
		return nil, fmt.Errorf("login as %s: %w", c.username, err)
	}
	return cl, nil
}

func logEvents(log logger.Logger, cl *client.Client) {
	for ev := range cl.Events() {
		switch ev.Kind {
		case client.EventDiagnostic:
			log.LogDetails(ev.Diagnostic.Level, ev.Diagnostic.Message, nil, nil, nil)
		case client.EventConnectionStateChanged:
			log.Info(fmt.Sprintf("connection state: %s -> %s", ev.ConnectionStateChanged.Previous, ev.ConnectionStateChanged.Current))
		case client.EventPrivateMessage:
			log.Info(fmt.Sprintf("[pm] %s: %s", ev.PrivateMessage.Username, ev.PrivateMessage.Message))
		case client.EventRoomMessage:
			log.Info(fmt.Sprintf("[%s] %s: %s", ev.RoomMessage.Room, ev.RoomMessage.Username, ev.RoomMessage.Message))
		case client.EventKickedFromServer:
			log.Warning("kicked from server")
		}
	}
}

func newRootCommand(log logger.Logger) *cobra.Command {
	cctx := &cliContext{log: log}

	root := &cobra.Command{
		Use:           "soulseek-cli",
		Short:         "Minimal SoulSeek client driver",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&cctx.server, "server", "server.slsknet.org:2242", "SoulSeek server address")
	root.PersistentFlags().StringVar(&cctx.username, "username", "", "SoulSeek username")
	root.PersistentFlags().StringVar(&cctx.password, "password", "", "SoulSeek password")
	root.PersistentFlags().DurationVar(&cctx.timeout, "timeout", 15*time.Second, "connect/login timeout")

	_ = viper.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("username", root.PersistentFlags().Lookup("username"))
	_ = viper.BindPFlag("password", root.PersistentFlags().Lookup("password"))

	root.AddCommand(newSearchCommand(cctx))
	root.AddCommand(newDownloadCommand(cctx))
	root.AddCommand(newBrowseCommand(cctx))

	return root
}
