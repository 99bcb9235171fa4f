package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL string
	outputFmt string
	actorID   string
)

var rootCmd = &cobra.Command{
	Use:   "attrctl",
	Short: "CLI for the attribute registry server",
	Long: `attrctl manages dynamic entity attributes on a running attribute
registry server: reading and writing values, inspecting the declared
schema, running legacy-column migrations, and administrative tasks.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Attribute registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "", "Actor id recorded in the audit trail")

	viper.SetEnvPrefix("ATTRCTL")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))

	cobra.OnInitialize(func() {
		// Environment (ATTRCTL_SERVER, ATTRCTL_ACTOR) backs the flags.
		serverURL = viper.GetString("server")
		actorID = viper.GetString("actor")
	})

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(attributesCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(provisionCmd)
}
