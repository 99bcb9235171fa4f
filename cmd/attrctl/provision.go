package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campushub/attribute-registry/internal/config"
	"github.com/campushub/attribute-registry/internal/db"
	"github.com/campushub/attribute-registry/internal/db/service"
)

var (
	provisionDBType string
	provisionDSN    string
)

var provisionCmd = &cobra.Command{
	Use:   "provision <schema-file>",
	Short: "Apply an attribute schema document directly to the database",
	Long: `Apply an attribute schema document (entity types, storage strategies and
attribute definitions) directly to the database, bypassing the server.
The apply is idempotent: existing declarations are updated in place and
value-type changes are refused.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provisionDBType, "db-type", "sqlite", "Database type: sqlite, mysql, postgres")
	provisionCmd.Flags().StringVar(&provisionDSN, "dsn", "", "Database DSN")
}

func runProvision(cmd *cobra.Command, args []string) error {
	specs, err := config.LoadSchema(args[0])
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(provisionDBType, provisionDSN)
	if err != nil {
		return err
	}

	if err := service.NewProvisioner(gormDB, nil).Apply(specs); err != nil {
		return err
	}

	total := 0
	for _, spec := range specs {
		total += len(spec.Attributes)
	}
	fmt.Printf("applied %d entity type(s), %d attribute definition(s)\n", len(specs), total)
	return nil
}
