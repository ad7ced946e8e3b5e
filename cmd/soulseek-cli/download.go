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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabouaram/soulseek/transfer"
)

func newDownloadCommand(cctx *cliContext) *cobra.Command {
	var (
		out             string
		responseTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "download <username> <remote-filename>",
		Short: "Download one file from a peer's shares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, filename := args[0], args[1]
			if out == "" {
				out = filename
			}

			ctx := context.Background()
			cl, err := cctx.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cl.Disconnect() }()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer func() { _ = f.Close() }()

			t, err := cl.Download(ctx, username, filename, f, transfer.DownloadOptions{
				ResponseTimeout: responseTimeout,
				OnProgress: func(bytes, size int64) {
					fmt.Printf("\r%s: %d/%d bytes", filename, bytes, size)
				},
			})
			if err != nil {
				return fmt.Errorf("download %s from %s: %w", filename, username, err)
			}

			<-t.Done()
			fmt.Println()
			state, terr := t.State()
			if terr != nil {
				return fmt.Errorf("download ended in state %s: %w", state, terr)
			}
			fmt.Printf("download complete: %s (state=%s)\n", out, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "local path to write to (defaults to the remote filename)")
	cmd.Flags().DurationVar(&responseTimeout, "response-timeout", 30*time.Second, "time to wait for the peer's TransferResponse")

	return cmd
}
