package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var schemaPrefix string
var schemaIncludeInactive bool

var schemaCmd = &cobra.Command{
	Use:   "schema <entity-type>",
	Short: "List the attribute definitions of an entity type",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaPrefix, "prefix", "", "Only attributes with this name prefix")
	schemaCmd.Flags().BoolVar(&schemaIncludeInactive, "include-inactive", false, "Include inactive attribute definitions")
}

func runSchema(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := fmt.Sprintf("/api/v1/schema/%s?prefix=%s&includeInactive=%t",
		args[0], schemaPrefix, schemaIncludeInactive)

	var resp struct {
		Attributes []struct {
			Name          string `json:"name"`
			DisplayName   string `json:"displayName"`
			ValueType     string `json:"valueType"`
			IsRequired    bool   `json:"isRequired"`
			IsMultiValued bool   `json:"isMultiValued"`
			IsActive      bool   `json:"isActive"`
		} `json:"attributes"`
	}
	if err := client.getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Attributes))
	for _, attr := range resp.Attributes {
		rows = append(rows, []string{
			attr.Name,
			attr.DisplayName,
			attr.ValueType,
			strconv.FormatBool(attr.IsRequired),
			strconv.FormatBool(attr.IsMultiValued),
			strconv.FormatBool(attr.IsActive),
		})
	}
	printTable([]string{"Name", "Display Name", "Type", "Required", "Multi", "Active"}, rows)
	return nil
}
