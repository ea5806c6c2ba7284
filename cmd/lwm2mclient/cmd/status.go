package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	statusGatewayAddr string
	statusPath        string
)

func init() {
	statusCmd.Flags().StringVar(&statusGatewayAddr, "gateway", "http://127.0.0.1:8081", "base URL of a running lwm2mclient's HTTP gateway")
	statusCmd.Flags().StringVar(&statusPath, "path", "/3", "LwM2M path to discover")
	RootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "discover a path on a running lwm2mclient instance and print it as a table",
	RunE:  runStatus,
}

// discoverResponse mirrors pkg/gateway/http.DiscoverResponse without
// importing it, the way an operator CLI talks to a gateway only through
// its public HTTP contract.
type discoverResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	LinkFormat string `json:"link_format"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	u := statusGatewayAddr + "/discover?path=" + url.QueryEscape(statusPath)
	resp, err := httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("lwm2mclient: querying gateway: %w", err)
	}
	defer resp.Body.Close()

	var out discoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("lwm2mclient: decoding gateway response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("lwm2mclient: gateway returned error: %s", out.Error)
	}

	printLinkFormat(out.LinkFormat)
	return nil
}

func printLinkFormat(linkFormat string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Attributes"})
	for _, link := range splitLinks(linkFormat) {
		path, attrs := splitLink(link)
		table.Append([]string{path, attrs})
	}
	table.Render()
}

func splitLinks(linkFormat string) []string {
	var links []string
	depth := 0
	start := 0
	for i, r := range linkFormat {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				links = append(links, linkFormat[start:i])
				start = i + 1
			}
		}
	}
	if start < len(linkFormat) {
		links = append(links, linkFormat[start:])
	}
	return links
}

func splitLink(link string) (path, attrs string) {
	end := -1
	for i, r := range link {
		if r == '>' {
			end = i
			break
		}
	}
	if end < 0 {
		return link, ""
	}
	path = link[1:end]
	if end+1 < len(link) {
		attrs = link[end+2:] // skip the separating ';'
	}
	return path, attrs
}
