package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Read and write entity attribute values",
}

var attrGetCmd = &cobra.Command{
	Use:   "get <entity-type> <id>",
	Short: "Get the attribute values of an entity",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttrGet,
}

var attrSetCmd = &cobra.Command{
	Use:   "set <entity-type> <id> <name> <value>",
	Short: "Set one attribute value",
	Long: `Set one attribute value. The value is parsed as JSON when possible
(numbers, booleans, arrays, objects) and falls back to a plain string.`,
	Args: cobra.ExactArgs(4),
	RunE: runAttrSet,
}

var attrDeleteCmd = &cobra.Command{
	Use:   "delete <entity-type> <id> <name>",
	Short: "Delete one attribute value",
	Args:  cobra.ExactArgs(3),
	RunE:  runAttrDelete,
}

var (
	attrPrefix string
	attrHard   bool
	attrReason string
)

func init() {
	attrGetCmd.Flags().StringVar(&attrPrefix, "prefix", "", "Only attributes with this name prefix")
	attrDeleteCmd.Flags().BoolVar(&attrHard, "hard", false, "Physically remove rows instead of soft-deleting")
	attrSetCmd.Flags().StringVar(&attrReason, "reason", "", "Reason recorded in the audit trail")
	attrDeleteCmd.Flags().StringVar(&attrReason, "reason", "", "Reason recorded in the audit trail")

	attributesCmd.AddCommand(attrGetCmd)
	attributesCmd.AddCommand(attrSetCmd)
	attributesCmd.AddCommand(attrDeleteCmd)
}

func runAttrGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := fmt.Sprintf("/api/v1/entities/%s/%s/attributes?prefix=%s", args[0], args[1], attrPrefix)
	var attrs map[string]any
	if err := client.getJSON(path, &attrs); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(attrs)
	}

	rows := make([][]string, 0, len(attrs))
	for name, value := range attrs {
		rows = append(rows, []string{name, fmt.Sprintf("%v", value)})
	}
	printTable([]string{"Attribute", "Value"}, rows)
	return nil
}

func runAttrSet(cmd *cobra.Command, args []string) error {
	client := newClient()

	// JSON first so numbers, booleans and structured values survive;
	// anything unparseable is a plain string.
	var value any
	if err := json.Unmarshal([]byte(args[3]), &value); err != nil {
		value = args[3]
	}

	path := fmt.Sprintf("/api/v1/entities/%s/%s/attributes/%s?reason=%s", args[0], args[1], args[2], attrReason)
	var result map[string]any
	if err := client.putJSON(path, map[string]any{"value": value}, &result); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(result)
	}
	fmt.Printf("%s %s=%v (%v)\n", args[0], args[2], value, result["action"])
	return nil
}

func runAttrDelete(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := fmt.Sprintf("/api/v1/entities/%s/%s/attributes/%s?hard=%t&reason=%s",
		args[0], args[1], args[2], attrHard, attrReason)
	var result map[string]int64
	if err := client.deleteJSON(path, &result); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(result)
	}
	fmt.Printf("deleted %d row(s)\n", result["deleted"])
	return nil
}
