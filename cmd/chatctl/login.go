package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mozzarellastix/SWE-App/client"
)

var LoginCmd = &cobra.Command{
	Use:   "login USERNAME",
	Short: "Log in and print a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		api := client.NewAPIClient(serverURL, "", dialFunc())
		resp, err := api.Login(cmd.Context(), args[0], strings.TrimRight(password, "\r\n"))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Logged in as %s (id %d)\n", resp.User.Username, resp.User.ID)
		fmt.Println(resp.Token)
		return nil
	},
}
