package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"carlog/internal/core"
	"carlog/internal/filter"
	"carlog/internal/fuel"
	"carlog/internal/spending"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func dec(d fmt.Stringer) string { return strings.Replace(d.String(), ".", ",", 1) }

func newFuelCmd(o *rootOptions) *cobra.Command {
	var (
		policy          string
		monthlyDistance bool
	)
	cmd := &cobra.Command{
		Use:   "fuel",
		Short: "Show fuel consumption per trip and month",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, closeFn, err := o.loadState(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			opts := state.FuelOptions()
			if cmd.Flags().Changed("policy") {
				if opts.Policy, err = fuel.ParsePolicy(policy); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("monthly-distance") {
				opts.MonthlyDistance = monthlyDistance
			}
			return writeFuelReport(cmd.OutOrStdout(), fuel.Analyze(state.Records(), opts))
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "aggregate policy: trips-only or all-records")
	cmd.Flags().BoolVar(&monthlyDistance, "monthly-distance", false, "include per-month distance and consumption")
	return cmd
}

func writeFuelReport(w io.Writer, a fuel.Analysis) error {
	for _, n := range a.Notices {
		fmt.Fprintf(w, "note: %s\n", n)
	}
	s := a.Summary
	if s.Available {
		fmt.Fprintf(w, "average (%s): %s L/100 km, %s per km over %d km\n",
			s.Policy, dec(s.AvgRatePer100.Round(2)), dec(s.AvgCostPerDistance.Round(2)), s.TotalDistance)
	} else {
		fmt.Fprintf(w, "average (%s): not available\n", s.Policy)
	}
	fmt.Fprintf(w, "fuel spend: %s for %s L in %d records\n\n",
		s.TotalFuelSpend.FormatDecimalComma(), dec(s.TotalFuelVolume), s.FuelRecords)

	tw := newTabWriter(w)
	if len(a.Trips) > 0 {
		fmt.Fprintln(tw, "FROM\tTO\tKM\tLITRES\tCOST\tL/100KM\tCOST/KM")
		for _, t := range a.Trips {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				t.StartDate, t.EndDate, t.Distance, dec(t.ConsumedVolume),
				t.ConsumedCost.FormatDecimalComma(), dec(t.RatePer100.Round(2)), dec(t.CostPerDistance.Round(2)))
		}
		fmt.Fprintln(tw)
	}
	if len(a.Monthly.Months) > 0 {
		fmt.Fprintln(tw, "MONTH\tSPEND\tLITRES\tFILLS\tKM\tL/100KM")
		for _, m := range a.Monthly.Months {
			km, rate := "-", "-"
			if m.HasDistance {
				km, rate = fmt.Sprint(m.Distance), dec(m.RatePer100.Round(2))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				m.Key(), m.Spend.FormatDecimalComma(), dec(m.Volume), m.Count, km, rate)
		}
	}
	return tw.Flush()
}

func newSpendingCmd(o *rootOptions) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "spending",
		Short: "Show spending per category for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("invalid month %d", month)
			}
			state, closeFn, err := o.loadState(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			at := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			return writeSpendingReport(cmd.OutOrStdout(), state.Spending(at))
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	return cmd
}

func writeSpendingReport(w io.Writer, s spending.Summary) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "CATEGORY\t%04d-%02d\tTOTAL\tRECORDS\n", s.Year, int(s.Month))
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			c.Category, c.ThisMonth.FormatDecimalComma(), c.Total.FormatDecimalComma(), len(c.Records))
	}
	fmt.Fprintf(tw, "ALL\t%s\t%s\t\n", s.ThisMonth.FormatDecimalComma(), s.Total.FormatDecimalComma())
	return tw.Flush()
}

func newRecordsCmd(o *rootOptions) *cobra.Command {
	var (
		categories []string
		from, to   string
		query      string
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List records matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			crit, err := parseCriteria(categories, from, to, query)
			if err != nil {
				return err
			}
			state, closeFn, err := o.loadState(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return writeRecords(cmd.OutOrStdout(), state.Filter(crit))
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "categories to include (repeatable or comma-separated)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&query, "query", "q", "", "description substring")
	return cmd
}

func parseCriteria(categories []string, from, to, query string) (filter.Criteria, error) {
	crit := filter.Criteria{Description: strings.TrimSpace(query)}
	for _, name := range categories {
		c, err := core.ParseCategory(name)
		if err != nil {
			return filter.Criteria{}, fmt.Errorf("category %q: %w", name, err)
		}
		crit.Categories = append(crit.Categories, c)
	}
	var err error
	if from != "" {
		if crit.From, err = core.ParseDate(from); err != nil {
			return filter.Criteria{}, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if crit.To, err = core.ParseDate(to); err != nil {
			return filter.Criteria{}, fmt.Errorf("--to: %w", err)
		}
	}
	return crit, nil
}

func writeRecords(w io.Writer, records []core.Record) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "DATE\tCATEGORY\tODOMETER\tAMOUNT\tINST\tLITRES\tFILL\tDESCRIPTION")
	for _, r := range records {
		litres := ""
		if r.IsFuel() {
			litres = dec(r.Volume)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
			r.Date, r.Category, r.Odometer, r.Amount.FormatDecimalComma(),
			r.Installments, litres, r.Fill, r.Description)
	}
	fmt.Fprintf(tw, "%d record(s)\n", len(records))
	return tw.Flush()
}
