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

	"github.com/sabouaram/soulseek/search"
)

func newSearchCommand(cctx *cliContext) *cobra.Command {
	var (
		room     string
		username string
		wishlist bool
		deadline time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a network, room, user or wishlist search and print results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			ctx := context.Background()
			cl, err := cctx.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cl.Disconnect() }()

			scope := search.Scope{Kind: search.ScopeNetwork}
			switch {
			case room != "":
				scope = search.Scope{Kind: search.ScopeRoom, Name: room}
			case username != "":
				scope = search.Scope{Kind: search.ScopeUser, Name: username}
			case wishlist:
				scope = search.Scope{Kind: search.ScopeWishlist}
			}

			runCtx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()

			s, err := cl.Search(runCtx, query, scope, search.DefaultFilters(), search.Options{
				InactivityTimeout: deadline,
				OnResponse: func(r search.Response) {
					fmt.Printf("%s: %d file(s), queue=%d, speed=%d bps\n", r.Username, len(r.Files), r.QueueLength, r.UploadSpeedBps)
				},
			})
			if err != nil {
				return fmt.Errorf("start search: %w", err)
			}

			<-s.Done()
			_, reason := s.State()
			fmt.Printf("search finished: %d response(s), reason=%d\n", len(s.Responses()), reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "search within this room instead of the whole network")
	cmd.Flags().StringVar(&username, "user", "", "search this user's shares instead of the whole network")
	cmd.Flags().BoolVar(&wishlist, "wishlist", false, "issue this as a wishlist search")
	cmd.Flags().DurationVar(&deadline, "deadline", 20*time.Second, "overall search duration before giving up")

	return cmd
}
