package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mozzarellastix/SWE-App/client"
	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

var historyLimit int

func init() {
	ChatCmd.Flags().IntVarP(&historyLimit, "history", "n", 20, "Number of earlier messages to print before joining")
}

var ChatCmd = &cobra.Command{
	Use:   "chat USER_ID",
	Short: "Chat with another user, one message per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		if token == "" {
			return fmt.Errorf("no session token: run chatctl login or set SWEAPP_TOKEN")
		}
		ctx := cmd.Context()

		if historyLimit > 0 {
			api := client.NewAPIClient(serverURL, token, dialFunc())
			history, err := api.History(ctx, counterpartID, historyLimit)
			if err != nil {
				return err
			}
			for _, m := range history.Messages {
				fmt.Printf("[%s] #%d: %s\n", m.CreatedAt.Local().Format(protocol.TimestampLayout), m.SenderID, m.Content)
			}
		}

		conn, err := client.NewDialer(dialFunc()).Dial(ctx, serverURL, counterpartID, token)
		if err != nil {
			return err
		}
		defer conn.Close()

		go func() {
			for msg := range conn.Messages() {
				fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.SenderUsername, msg.Message)
			}
			log.Info("Connection closed, press enter to exit")
		}()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := conn.Send(line); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}
