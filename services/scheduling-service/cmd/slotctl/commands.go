package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smartbook-ai/smartbook/libs/config"
	"github.com/smartbook-ai/smartbook/libs/grpcx"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/recommend"
)

var outputFormat string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slotctl",
		Short:         "SmartBook slot recommendation tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")

	root.AddCommand(newRecommendCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newHealthCmd())
	return root
}

func newRecommendCmd() *cobra.Command {
	var (
		file, date, role string
		seed             int64
		start, end       float64
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank open slots for a day from an appointments file, without a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			appts, err := readAppointments(file)
			if err != nil {
				return err
			}
			day, err := time.ParseInLocation("2006-01-02", date, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			engine := recommend.NewEngine(recommend.Options{
				Hours:  availability.BusinessHours{StartHour: start, EndHour: end},
				Source: recommend.NewSource(seed),
				Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			})
			res, err := engine.Generate(cmd.Context(), recommend.Request{
				Date:         day,
				Appointments: appts,
				Role:         model.Role(role),
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON array of appointments, - for stdin")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "target day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleStaff), "role the insights are written for (admin, staff, customer)")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed for score perturbation")
	cmd.Flags().Float64Var(&start, "start", availability.DefaultHours.StartHour, "business hours start")
	cmd.Flags().Float64Var(&end, "end", availability.DefaultHours.EndHour, "business hours end")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var baseURL, username, password, date string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Log in to a running service and generate suggestions for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(password) == "" {
				return fmt.Errorf("--password or SMARTBOOK_PASSWORD is required")
			}
			c := &http.Client{Timeout: 15 * time.Second}
			base := strings.TrimRight(baseURL, "/")

			var login struct {
				Token string `json:"token"`
			}
			if err := postJSON(cmd.Context(), c, base+"/api/auth/login", "", map[string]string{"username": username, "password": password}, &login); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			var saved model.Recommendation
			if err := postJSON(cmd.Context(), c, base+"/api/ai-suggestions/generate", login.Token, map[string]string{"date": date}, &saved); err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "suggestion %d for %s\n", saved.ID, saved.Date.Format("2006-01-02"))
			return printResult(cmd.OutOrStdout(), saved.Suggestion)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", config.String("SMARTBOOK_URL", "http://localhost:5000"), "scheduling service base url")
	cmd.Flags().StringVar(&username, "username", config.String("SMARTBOOK_USERNAME", "staff"), "account to log in as")
	cmd.Flags().StringVar(&password, "password", config.String("SMARTBOOK_PASSWORD", ""), "account password")
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "target day (YYYY-MM-DD)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var addr, service string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpcx.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return fmt.Errorf("health check %s: %w", addr, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", service, resp.GetStatus())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "gRPC address")
	cmd.Flags().StringVar(&service, "service", "", "service name, empty for overall health")
	return cmd
}

func readAppointments(path string) ([]model.Appointment, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var appts []model.Appointment
	if err := json.NewDecoder(r).Decode(&appts); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appts, nil
}

func postJSON(ctx context.Context, c *http.Client, url, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return fmt.Errorf("%s: %s", resp.Status, msg.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printResult(w io.Writer, res model.RecommendationResult) error {
	if outputFormat == "json" {
		raw, err := recommend.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tSCORE\tREASON")
	for _, s := range res.RecommendedSlots {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", s.StartTime.Format("15:04"), s.EndTime.Format("15:04"), s.Score, s.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, in := range res.Insights {
		fmt.Fprintf(w, "* %s\n", in)
	}
	for _, r := range res.NoShowRisks {
		fmt.Fprintf(w, "! appointment %s no-show risk %.2f\n", strconv.FormatInt(r.AppointmentID, 10), r.Risk)
	}
	return nil
}
