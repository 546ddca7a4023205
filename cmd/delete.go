package cmd

import (
	"github.com/jrschumacher/dis.quest/internal/logger"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <at-uri>",
	Short: "Delete a record in the current session's own repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		uri, err := pdsclient.ParseAtUri(args[0])
		if err != nil {
			return err
		}

		if err := sess.DeleteRecord(rootContext(), uri); err != nil {
			return err
		}

		logger.Info("record deleted", "uri", uri.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
