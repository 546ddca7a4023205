package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <at-uri>",
	Short: "Fetch a single record by its at:// URI",
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

		rec, err := sess.GetRecord(rootContext(), uri)
		if err != nil {
			return err
		}

		raw, err := json.MarshalIndent(recordView{
			URI:   rec.URI.String(),
			CID:   rec.CID,
			Value: rec.Value.AsValue(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
