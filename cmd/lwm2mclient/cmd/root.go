// Package cmd holds the lwm2mclient CLI, structured the way the teacher's
// facebook-time-style cmd/calnex root command is (a shared RootCmd plus one
// file per subcommand), rather than the single flag.Parse main the
// teacher's own cmd/canopen uses, since the CLI here has more than one verb.
package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the CLI's entry point; each verb (run, status) is a child
// command registered in its own init().
var RootCmd = &cobra.Command{
	Use:   "lwm2mclient",
	Short: "LwM2M 1.1/1.2 client engine and inspection CLI",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lwm2mclient.ini", "path to the client's INI configuration file")
}

// Execute runs the CLI, exiting the process on error the way the teacher's
// own cmd.Execute does.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
