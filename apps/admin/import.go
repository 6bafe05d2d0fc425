package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/soptable/portal/core/reconcile"
	sheetsvc "github.com/soptable/portal/services/sheet"
)

func (cli *commandLine) importCmd() *cobra.Command {
	var (
		errorsOut string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Reconcile the users of an .xlsx or .csv sheet with the user table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, sum, err := cli.importSheet(cmd, args[0])
			if err != nil {
				return err
			}

			if errorsOut != "" && len(sum.Errors) > 0 {
				var buf bytes.Buffer
				if err = sheetsvc.ErrorWorkbook(&buf, sh, sum.Errors); err != nil {
					return err
				}
				if err = os.WriteFile(errorsOut, buf.Bytes(), 0o644); err != nil {
					return errors.Wrap(err, "writing errors workbook")
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			for _, w := range sh.Warnings {
				printf(cmd, "warning: %s\n", w)
			}
			for _, e := range sum.Errors {
				printf(cmd, "line %d <%s>: %s\n", sh.Line(e.Idx), e.Email, e.Error)
			}
			printf(cmd, "inserted: %d, updated: %d, skipped: %d, errors: %d\n",
				sum.Inserted, sum.Updated, sum.Skipped, len(sum.Errors))
			return nil
		},
	}
	cmd.Flags().StringVar(&errorsOut, "errors-out", "", "write the rejected rows, with their reason, to this .xlsx file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary, with every row outcome, as JSON")
	return cmd
}

func (cli *commandLine) importSheet(cmd *cobra.Command, path string) (*sheetsvc.Sheet, reconcile.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, reconcile.Summary{}, errors.Wrap(err, "opening sheet")
	}
	defer f.Close()

	sh, err := sheetsvc.Parse(f, path)
	if err != nil {
		return nil, reconcile.Summary{}, errors.Wrap(err, "parsing sheet")
	}
	if len(sh.Rows) == 0 {
		return nil, reconcile.Summary{}, reconcile.ErrEmptyBatch
	}
	if cli.maxRows > 0 && len(sh.Rows) > cli.maxRows {
		return nil, reconcile.Summary{}, errors.Errorf("too many users: %d (max %d)", len(sh.Rows), cli.maxRows)
	}
	return sh, cli.engine.Reconcile(cmd.Context(), sh.Candidates()), nil
}
