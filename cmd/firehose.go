package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var firehoseCursor int64

var firehoseCmd = &cobra.Command{
	Use:   "firehose",
	Short: "Stream repo events from the configured PDS until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		url, err := pdsclient.ParsePdsUrl(cfg.PDSURL)
		if err != nil {
			return err
		}
		pds, err := pdsclient.Open(url)
		if err != nil {
			return err
		}

		fh, err := pds.Firehose(rootContext(), pdsclient.FirehoseOptions{Cursor: firehoseCursor})
		if err != nil {
			return err
		}
		defer fh.Close()

		ctx := rootContext()
		for {
			event, ok, err := fh.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			raw, err := json.Marshal(event)
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
		}
	},
}

func init() {
	firehoseCmd.Flags().Int64Var(&firehoseCursor, "cursor", 0, "resume from a past sequence number, if the backend supports it")
	rootCmd.AddCommand(firehoseCmd)
}
