package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blip-dev/blip/pkg/blip"
	"github.com/blip-dev/blip/pkg/wstransport"
)

// sendDelegate ignores upcalls; the send command awaits its one response
// through the request's future.
type sendDelegate struct{}

func (sendDelegate) OnRequestReceived(req *blip.MessageIn)   {}
func (sendDelegate) OnResponseReceived(resp *blip.MessageIn) {}
func (sendDelegate) OnClose(reason error)                    {}

func sendCmd() *cobra.Command {
	var (
		urlStr   string
		protocol string
		profile  string
		body     string
		urgent   bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one BLIP request and print the response body",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			t, err := wstransport.Dial(ctx, urlStr, wstransport.Options{
				AppProtocolID: protocol,
			})
			if err != nil {
				return err
			}

			conn := blip.NewConnection(t, blip.ConnectionOptions{Delegate: sendDelegate{}})
			conn.Start()
			defer conn.Close()

			b := blip.NewMessageBuilder()
			b.Urgent = urgent
			if err := b.AddProperty("Profile", profile); err != nil {
				return err
			}
			b.WriteString(body)

			msg, err := conn.SendRequest(b)
			if err != nil {
				return err
			}

			resp, err := msg.FutureResponse().Await(ctx)
			if err != nil {
				return err
			}
			if resp.Type() == blip.ErrorType {
				return fmt.Errorf("peer error: %s %d %s",
					resp.ErrorDomain(), resp.ErrorCode(), resp.Body())
			}
			fmt.Fprintf(os.Stdout, "%s\n", resp.Body())
			return nil
		},
	}

	cmd.Flags().StringVar(&urlStr, "url", "ws://localhost:4984/blip", "listener URL")
	cmd.Flags().StringVar(&protocol, "protocol", "echo", "application protocol ID")
	cmd.Flags().StringVar(&profile, "profile", "echo", "request Profile property")
	cmd.Flags().StringVar(&body, "body", "", "request body")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "send in the urgent band")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}
