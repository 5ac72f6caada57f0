package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shuttertrack/shuttertrack/internal/models"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage photography jobs",
	}
	cmd.AddCommand(newJobAddCmd(), newJobListCmd(), newJobUpdateCmd(), newJobRemoveCmd())
	return cmd
}

func newJobUpdateCmd() *cobra.Command {
	var status, notes string
	var fee float64

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				job, err := findJob(ctx, d, args[0])
				if err != nil {
					return err
				}
				if status != "" {
					job.Status = status
				}
				if notes != "" {
					job.Notes = notes
				}
				if cmd.Flags().Changed("fee") {
					job.FeeCents = feeCents(fee)
				}

				if err := d.Store.UpdateJob(ctx, job); err != nil {
					return err
				}
				if d.Auth.IsAuthenticated() {
					d.Engines.Jobs.MirrorUpsert(job)
					defer drainMirrors(ctx, d)
				}
				pterm.Success.Printfln("Updated job for %s", job.ClientName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&notes, "notes", "", "Replace notes")
	cmd.Flags().Float64Var(&fee, "fee", 0, "New fee")
	return cmd
}

func newJobAddCmd() *cobra.Command {
	var (
		client   string
		title    string
		location string
		date     string
		fee      float64
		notes    string
		status   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				job := &models.Job{
					ClientName: client,
					Title:      title,
					Location:   location,
					FeeCents:   feeCents(fee),
					Notes:      notes,
					Status:     status,
				}
				if date != "" {
					shootDate, err := time.Parse("2006-01-02", date)
					if err != nil {
						return fmt.Errorf("shoot date must be YYYY-MM-DD: %w", err)
					}
					job.ShootDate = shootDate
				}
				if job.Status == "" {
					job.Status = models.JobStatusInquiry
				}

				inserted, err := d.Store.InsertJob(ctx, job)
				if err != nil {
					return err
				}
				if d.Auth.IsAuthenticated() {
					d.Engines.Jobs.MirrorUpsert(inserted)
					defer drainMirrors(ctx, d)
				}

				pterm.Success.Printfln("Added job for %s (%s)", inserted.ClientName, inserted.LocalID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "Client name")
	cmd.Flags().StringVar(&title, "title", "", "Shoot title")
	cmd.Flags().StringVar(&location, "location", "", "Shoot location")
	cmd.Flags().StringVar(&date, "date", "", "Shoot date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&fee, "fee", 0, "Agreed fee")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&status, "status", "", "Status (inquiry, booked, shot, delivered, paid)")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newJobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				jobs, err := d.Store.ListJobs(ctx)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					pterm.Info.Println("No jobs yet")
					return nil
				}

				rows := pterm.TableData{{"ID", "Client", "Title", "Date", "Fee", "Status", "Synced"}}
				for _, job := range jobs {
					date := ""
					if !job.ShootDate.IsZero() {
						date = job.ShootDate.Format("2006-01-02")
					}
					synced := ""
					if job.RemoteID != "" {
						synced = "yes"
					}
					rows = append(rows, []string{
						shortID(job.LocalID),
						job.ClientName,
						job.Title,
						date,
						formatFee(job.FeeCents),
						job.Status,
						synced,
					})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
			})
		},
	}
}

func newJobRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job locally and from the cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				job, err := findJob(ctx, d, args[0])
				if err != nil {
					return err
				}
				if err := d.Engines.Jobs.Delete(ctx, job); err != nil {
					return err
				}
				pterm.Success.Printfln("Removed job for %s", job.ClientName)
				return nil
			})
		},
	}
}

func newJobTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobtype",
		Short: "Manage shoot categories",
	}

	var name string
	var baseFee float64
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a shoot category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				inserted, err := d.Store.InsertJobType(ctx, &models.JobType{
					Name:    name,
					BaseFee: feeCents(baseFee),
				})
				if err != nil {
					return err
				}
				if d.Auth.IsAuthenticated() {
					d.Engines.JobTypes.MirrorUpsert(inserted)
					defer drainMirrors(ctx, d)
				}
				pterm.Success.Printfln("Added category %s", inserted.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "Category name")
	add.Flags().Float64Var(&baseFee, "base-fee", 0, "Default fee for the category")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List shoot categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				jobTypes, err := d.Store.ListJobTypes(ctx)
				if err != nil {
					return err
				}
				if len(jobTypes) == 0 {
					pterm.Info.Println("No categories yet")
					return nil
				}
				rows := pterm.TableData{{"ID", "Name", "Base fee", "Synced"}}
				for _, jobType := range jobTypes {
					synced := ""
					if jobType.RemoteID != "" {
						synced = "yes"
					}
					rows = append(rows, []string{
						shortID(jobType.LocalID), jobType.Name, formatFee(jobType.BaseFee), synced,
					})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local jobs with the cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, d *deps) error {
				ok, _ := d.Auth.CheckState(ctx)
				if !ok {
					return fmt.Errorf("sign in before syncing")
				}

				spinner, _ := pterm.DefaultSpinner.Start("Syncing")
				result, err := d.Engines.SyncAll(ctx)
				if err != nil {
					spinner.Fail(err.Error())
					return err
				}
				spinner.Success(fmt.Sprintf("Pulled %d, created %d, updated %d, skipped %d",
					result.Pulled, result.Created, result.Updated, result.Skipped))
				return nil
			})
		},
	}
}

// drainMirrors gives in-flight background mirrors a moment to finish before
// the process exits. The next sync repairs anything that did not make it.
func drainMirrors(ctx context.Context, d *deps) {
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = d.Engines.WaitMirrors(waitCtx)
}

// findJob resolves a full or shortened local id to a job.
func findJob(ctx context.Context, d *deps, id string) (*models.Job, error) {
	jobs, err := d.Store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	var match *models.Job
	for _, job := range jobs {
		if job.LocalID == id || shortID(job.LocalID) == id {
			if match != nil {
				return nil, fmt.Errorf("id %q is ambiguous, use the full id", id)
			}
			match = job
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no job with id %q", id)
	}
	return match, nil
}

// feeCents converts a decimal fee to cents. Rounded, not truncated: most
// two-decimal amounts have no exact float representation.
func feeCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatFee(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
