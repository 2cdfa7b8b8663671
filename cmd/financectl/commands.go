package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"finance/internal/core"
	"finance/internal/services"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	amountStyle = cellStyle.Align(lipgloss.Right)
)

func renderTable(w io.Writer, headers []string, rows [][]string, amountCol int) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == amountCol:
				return amountStyle
			default:
				return cellStyle
			}
		})
	fmt.Fprintln(w, t.Render())
}

func recordRows(records []core.IndexedRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, ir := range records {
		r := ir.Record
		rows = append(rows, []string{
			strconv.Itoa(ir.Index),
			r.Date.String(),
			r.Category,
			r.Title,
			core.FormatAmount(r.Amount),
			r.Notes,
		})
	}
	return rows
}

var recordHeaders = []string{"#", "Date", "Category", "Title", "Amount", "Notes"}

func newListCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records := core.Indexed(a.svc.AllRecords())
			if category != "" {
				records = a.svc.FilterByCategory(category)
			}
			renderTable(cmd.OutOrStdout(), recordHeaders, recordRows(records), 4)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only show records in this category")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var in services.RecordInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record and save the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.svc.AddRecord(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %s %q %s\n",
				rec.Date, rec.Category, rec.Title, core.FormatAmount(rec.Amount))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Date, "date", "d", "", "record date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&in.Category, "category", "c", "", "category")
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&in.Amount, "amount", "a", "", "amount, e.g. 12.50")
	cmd.Flags().StringVarP(&in.Notes, "notes", "n", "", "free-form notes")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		index int
		id    string
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a record by list index or id and save the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rec core.Record
				err error
			)
			switch {
			case id != "":
				parsed, perr := uuid.Parse(id)
				if perr != nil {
					return fmt.Errorf("invalid id %q: %w", id, core.ErrInvalidArgument)
				}
				rec, err = a.svc.DeleteRecordByID(cmd.Context(), parsed)
			case cmd.Flags().Changed("index"):
				rec, err = a.svc.DeleteRecord(cmd.Context(), index)
			default:
				return fmt.Errorf("one of --index or --id is required: %w", core.ErrInvalidArgument)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s %q %s\n",
				rec.Date, rec.Category, rec.Title, core.FormatAmount(rec.Amount))
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "position shown by list")
	cmd.Flags().StringVar(&id, "id", "", "record id")
	cmd.MarkFlagsMutuallyExclusive("index", "id")
	return cmd
}

func newTotalsCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show per-category totals for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			totals, err := a.svc.MonthlyTotals(month)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(totals))
			for _, t := range totals {
				rows = append(rows, []string{t.Category, core.FormatAmount(t.Amount)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Category", "Amount"}, rows, 1)
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", core.AllMonths, "month as YYYY-MM, or ALL")
	return cmd
}

func newSumCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "sum",
		Short: "Show the total spent in a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := a.svc.MonthlySum(month)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), core.FormatSum(sum))
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", core.AllMonths, "month as YYYY-MM, or ALL")
	return cmd
}

func newMonthsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List ALL followed by each month in the ledger, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, m := range a.svc.ListMonths() {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}
