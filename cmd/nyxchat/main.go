// Command nyxchat is a thin operator shell around a Client, useful
// for smoke-testing a node against a bootstrap peer or identity registry
// without pulling in a host shell's UI. It is not part of the embeddable
// library surface.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	nyxcore "github.com/nyxtalk/nyxcore"
	"github.com/spf13/cobra"
)

func main() {
	var dataDir string

	root := &cobra.Command{
		Use:   "nyxchat",
		Short: "Operate a nyxcore node from the command line",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./nyxcore-data", "storage directory for identity and message history")

	root.AddCommand(
		newPeerIDCmd(&dataDir),
		newRegisterCmd(&dataDir),
		newSendCmd(&dataDir),
		newContactsCmd(&dataDir),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openClient(dataDir string) (*nyxcore.Client, error) {
	return nyxcore.New(dataDir, nyxcore.DefaultOptions())
}

func newPeerIDCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "peer-id",
		Short: "Print this node's peer ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(*dataDir)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Println(client.LocalPeerID())
			return nil
		},
	}
}

func newRegisterCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Register a username with the identity registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(*dataDir)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			return client.RegisterUsername(ctx, args[0])
		},
	}
}

func newSendCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send [peer-id] [text]",
		Short: "Send a text message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(*dataDir)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			msg, err := client.SendText(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(msg.ID)
			return nil
		},
	}
}

func newContactsCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List known contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(*dataDir)
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			contacts, err := client.ListContacts(ctx)
			if err != nil {
				return err
			}
			for _, c := range contacts {
				fmt.Printf("%s\t%s\t%s\n", c.PeerID, c.Username, c.DisplayName)
			}
			return nil
		},
	}
}
