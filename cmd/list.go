package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jrschumacher/dis.quest/pkg/pdsclient"
	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listCursor string
)

var listCmd = &cobra.Command{
	Use:   "list <repo-did> <collection>",
	Short: "List records in a repo's collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}

		repo, err := pdsclient.ParseDid(args[0])
		if err != nil {
			return err
		}
		collection, err := pdsclient.ParseNsid(args[1])
		if err != nil {
			return err
		}

		out, err := sess.ListRecords(rootContext(), repo, collection, listLimit, listCursor)
		if err != nil {
			return err
		}

		raw, err := json.MarshalIndent(newListRecordsView(out), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

// recordView is the CLI's printable projection of a Record: AtUri has no
// JSON form of its own since the wire protocol addresses records by their
// string form embedded directly in envelopes, not a marshaled struct.
type recordView struct {
	URI   string                 `json:"uri"`
	CID   string                 `json:"cid"`
	Value map[string]interface{} `json:"value"`
}

type listRecordsView struct {
	Records []recordView `json:"records"`
	Cursor  string       `json:"cursor,omitempty"`
}

func newListRecordsView(out pdsclient.ListRecordsOutput) listRecordsView {
	views := make([]recordView, 0, len(out.Records))
	for _, rec := range out.Records {
		views = append(views, recordView{URI: rec.URI.String(), CID: rec.CID, Value: rec.Value.AsValue()})
	}
	return listRecordsView{Records: views, Cursor: out.Cursor}
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "page size; 0 uses the backend default")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "opaque continuation cursor from a prior page")
	rootCmd.AddCommand(listCmd)
}
