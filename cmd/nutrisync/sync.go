package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

// errOffline is returned by commands that need a backend.
var errOffline = errors.New("no backend configured; set NUTRISYNC_BACKEND_URL or unset NUTRISYNC_OFFLINE")

var backupDir string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push every pending entry to the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, func(ctx context.Context, c *nutrisync.Client) ([]types.SyncResult, error) {
			return c.Sync(ctx)
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the local database",
	Long: `Write a consistent copy of the local database. When backup storage is
configured the copy is uploaded as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
			dir := backupDir
			if dir == "" {
				dir = filepath.Join(filepath.Dir(c.Config().Database.Path), "backups")
			}
			res, err := c.Backup(ctx, dir)
			if res != nil {
				if jsonOutput {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return perr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d bytes).\n", res.Path, res.Size)
					if res.Uploaded {
						fmt.Fprintf(cmd.OutOrStdout(), "Uploaded as %s.\n", res.Key)
					}
				}
			}
			return err
		})
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the local store and backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
			h, err := c.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), h)
			}

			tw := newTabWriter(cmd.OutOrStdout())
			backend := "offline"
			if h.Online {
				backend = "reachable"
				if !h.BackendReachable {
					backend = "unreachable: " + h.BackendError
				}
			}
			fmt.Fprintf(tw, "Backend:\t%s\n", backend)
			fmt.Fprintf(tw, "Assistant:\t%s\n", h.Assistant)
			fmt.Fprintf(tw, "Pending meals:\t%d\n", h.Stats.PendingMeals)
			fmt.Fprintf(tw, "Pending water:\t%d\n", h.Stats.PendingWater)
			if h.Stats.LastSync != nil {
				fmt.Fprintf(tw, "Last sync:\t%s\n", h.Stats.LastSync.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nutrisync %s\n", Version)
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "Output directory (default: backups next to the database)")
}

// runSync runs fn against a client with a backend and prints the results.
// A partial failure still prints what was pushed before returning the error.
func runSync(cmd *cobra.Command, fn func(ctx context.Context, c *nutrisync.Client) ([]types.SyncResult, error)) error {
	return withClient(cmd, func(ctx context.Context, c *nutrisync.Client) error {
		if !c.Config().Online() {
			return errOffline
		}
		results, err := fn(ctx, c)
		if jsonOutput {
			if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
				return perr
			}
			return err
		}

		tw := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(tw, "KIND\tPUSHED\tFAILED\tDURATION")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Kind, r.Pushed, r.Failed, r.Duration.Round(time.Millisecond))
		}
		if ferr := tw.Flush(); ferr != nil {
			return ferr
		}
		return err
	})
}
