package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/integrityos/pipeline-hub/internal/apiclient"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

type options struct {
	api     string
	token   string
	json    bool
	timeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "integrityctl",
		Short:        "Command line client for the IntegrityOS pipeline monitoring API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("INTEGRITYOS_API", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("INTEGRITYOS_TOKEN"), "session token (INTEGRITYOS_TOKEN)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(
		loginCmd(opts),
		pipelinesCmd(opts),
		pipelineCmd(opts),
		sensorCmd(opts),
		historyCmd(opts),
		predictCmd(opts),
		reportCmd(opts),
		reportsCmd(opts),
		devicesCmd(opts),
		alertsCmd(opts),
	)
	return root
}

func (o *options) client() *apiclient.Client { return apiclient.New(o.api).WithToken(o.token) }

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// authErr adds a hint when the API rejects the session.
func authErr(err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		return fmt.Errorf("%w (run `integrityctl login` and export INTEGRITYOS_TOKEN)", err)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func loginCmd(o *options) *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session and print its token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			res, err := o.client().Login(ctx, user, password)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s), expires %s\n", res.User.Username, res.User.Role, res.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(cmd.OutOrStdout(), "export INTEGRITYOS_TOKEN=%s\n", res.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "guest", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func pipelinesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List pipelines with their latest status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			items, err := o.client().Pipelines(ctx)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), items)
			}
			return table(cmd.OutOrStdout(), "ID\tSTATUS\tTEMP °C\tPRESSURE\tLOSS mm\tDEVICE", func(tw *tabwriter.Writer) {
				for _, p := range items {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.0f\t%.2f\t%s\n", p.ID, p.Status, p.Temperature, p.Pressure, p.ThicknessLoss, p.DeviceID)
				}
			})
		},
	}
}

func pipelineCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <id>",
		Short: "Show the parameters and live status of one pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			p, err := o.client().Pipeline(ctx, args[0])
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), p)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Pipeline %s (%s)\n", p.ID, p.Status)
			fmt.Fprintf(w, "  device       %s\n  material     %s %s\n  size         %.0f in\n", p.DeviceID, p.Material, p.Grade, p.PipeSize)
			fmt.Fprintf(w, "  thickness    %.1f mm initial, %.1f mm minimum\n", p.InitialThickness, p.MinThickness)
			fmt.Fprintf(w, "  reading      %.1f °C, %.0f PSI, %.2f mm loss\n", p.Temperature, p.Pressure, p.ThicknessLoss)
			if p.YearsToFailure != nil {
				fmt.Fprintf(w, "  failure in   %.1f years\n", *p.YearsToFailure)
			}
			return nil
		},
	}
}

func sensorCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sensor <pipeline>",
		Short: "Show the latest reading of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			r, err := o.client().Latest(ctx, args[0])
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), r)
			}
			th := integrity.DefaultThresholds()
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s at %s\n", r.PipelineID, r.Timestamp.Format(time.RFC3339))
			fmt.Fprintf(cmd.OutOrStdout(), "  temperature  %.1f °C\n  pressure     %.0f PSI\n  loss         %.2f mm\n  status       %s\n",
				r.Temperature, r.Pressure, r.ThicknessLoss, th.Status(r))
			return nil
		},
	}
}

func historyCmd(o *options) *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "history <pipeline>",
		Short: "Print the reading history of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			h, err := o.client().History(ctx, args[0], hours)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), h)
			}
			return table(cmd.OutOrStdout(), "TIME\tTEMP °C\tPRESSURE\tLOSS mm", func(tw *tabwriter.Writer) {
				for _, p := range h.Data {
					fmt.Fprintf(tw, "%s\t%.1f\t%.0f\t%.2f\n", p.Timestamp.Format("2006-01-02 15:04"), p.Temperature, p.Pressure, p.ThicknessLoss)
				}
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "hours of history (max 168)")
	return cmd
}

func predictCmd(o *options) *cobra.Command {
	var in integrity.PredictionInput
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run the thickness-loss prediction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			p, err := o.client().Predict(ctx, in)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thickness loss    %.2f mm\ncurrent thickness %.2f mm\nremaining life    %.1f years\nrisk              %s\n",
				p.ThicknessLoss, p.CurrentThickness, p.RemainingLife, p.RiskLevel)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&in.PipeSize, "pipe-size", 24, "pipe size in inches")
	f.Float64Var(&in.InitialThickness, "initial", 12.7, "initial wall thickness in mm")
	f.Float64Var(&in.MinThickness, "min", 8, "minimum allowed thickness in mm")
	f.Float64Var(&in.CorrosionImpact, "corrosion", 30, "corrosion impact percent")
	f.Float64Var(&in.MaterialLoss, "material-loss", 20, "material loss percent")
	f.StringVar(&in.Material, "material", "Carbon Steel", "material")
	f.StringVar(&in.Grade, "grade", "API 5L X65", "grade")
	return cmd
}

func reportCmd(o *options) *cobra.Command {
	var format, date, out string
	cmd := &cobra.Command{
		Use:   "report <pipeline>",
		Short: "Download the integrity report of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			name, body, err := o.client().Report(ctx, args[0], date, format)
			if err != nil {
				return authErr(err)
			}
			if out == "" {
				out = name
			}
			if out == "" {
				out = "report." + format
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", filepath.Clean(out), len(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "docx", "docx, pdf or txt")
	cmd.Flags().StringVar(&date, "date", "", "report date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default server file name)")
	return cmd
}

func reportsCmd(o *options) *cobra.Command {
	var pipeline string
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List published reports (expert or admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			keys, err := o.client().Reports(ctx, pipeline)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "only this pipeline")
	return cmd
}

func devicesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List sensor units (expert or admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			list, err := o.client().Devices(ctx)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), list)
			}
			err = table(cmd.OutOrStdout(), "ID\tNAME\tPIPELINE\tSTATUS\tFIRMWARE\tSIGNAL", func(tw *tabwriter.Writer) {
				for _, d := range list.Devices {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d%%\n", d.ID, d.Name, d.PipelineID, d.Status, d.Firmware, d.SignalStrength)
				}
			})
			if err != nil {
				return err
			}
			s := list.Stats
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d total, %d online, %d offline, %d warning\n", s.Total, s.Online, s.Offline, s.Warning)
			return nil
		},
	}
}

func alertsCmd(o *options) *cobra.Command {
	var severity string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List raised alerts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := o.context(cmd)
			defer cancel()
			alerts, err := o.client().Alerts(ctx, severity)
			if err != nil {
				return authErr(err)
			}
			if o.json {
				return printJSON(cmd.OutOrStdout(), alerts)
			}
			return table(cmd.OutOrStdout(), "TIME\tSEVERITY\tPIPELINE\tACK\tMESSAGE", func(tw *tabwriter.Writer) {
				for _, a := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Severity, a.PipelineID, a.Acknowledged, a.Message)
				}
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "warning or critical")
	return cmd
}
