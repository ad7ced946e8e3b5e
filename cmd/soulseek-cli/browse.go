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

	"github.com/spf13/cobra"
)

func newBrowseCommand(cctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <username>",
		Short: "List a peer's complete shared-folder tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]

			ctx := context.Background()
			cl, err := cctx.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cl.Disconnect() }()

			resp, err := cl.Browse(ctx, username)
			if err != nil {
				return fmt.Errorf("browse %s: %w", username, err)
			}

			for _, folder := range resp.Folders {
				fmt.Println(folder.Name)
				for _, file := range folder.Files {
					fmt.Printf("  %s (%d bytes)\n", file.Name, file.Size)
				}
			}
			return nil
		},
	}
	return cmd
}
