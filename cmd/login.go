package cmd

import (
	"fmt"

	"github.com/jrschumacher/dis.quest/internal/logger"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <handle> <password>",
	Short: "Authenticate against the configured PDS and persist the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		url, err := pdsclient.ParsePdsUrl(cfg.PDSURL)
		if err != nil {
			return err
		}
		pds, err := pdsclient.Open(url)
		if err != nil {
			return err
		}

		sess, err := pds.Login(rootContext(), pdsclient.Credentials{
			Identifier: args[0],
			Secret:     args[1],
		})
		if err != nil {
			return err
		}

		if err := saveSession(sess); err != nil {
			return err
		}

		logger.Info("logged in", "did", sess.Did().String())
		fmt.Println(sess.Did().String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
