package cmd

import (
	"fmt"

	"github.com/jrschumacher/dis.quest/internal/logger"
	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <collection> <json-value> [rkey]",
	Short: "Create a record in the current session's own repo",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(c *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		collection, err := pdsclient.ParseNsid(args[0])
		if err != nil {
			return err
		}

		var rkey pdsclient.Rkey
		if len(args) == 3 {
			rkey, err = pdsclient.ParseRkey(args[2])
			if err != nil {
				return err
			}
		}

		out, err := sess.CreateRecordRaw(rootContext(), collection, rkey, []byte(args[1]))
		if err != nil {
			return err
		}

		logger.Info("record created", "collection", collection.String())
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
