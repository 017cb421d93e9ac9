package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dayplan/internal/backup"
	"github.com/sandeepkv93/dayplan/internal/model"
)

// syncTimeout bounds transfers and sign-in, which outlive engine calls.
const syncTimeout = 5 * time.Minute

func (a *app) identity(cmd *cobra.Command) (*backup.MicrosoftIdentity, error) {
	return backup.NewMicrosoftIdentity(a.cfg.Sync.ClientID, a.cfg.Sync.Tenant, a.cfg.Sync.TokenCache,
		backup.WithIdentityLogger(a.logger),
		backup.WithPrompt(func(code, uri string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "To sign in, open %s and enter the code %s\n", uri, code)
		}),
	)
}

func (a *app) syncer(cmd *cobra.Command) (*backup.Syncer, error) {
	id, err := a.identity(cmd)
	if err != nil {
		return nil, err
	}
	drive := backup.NewOneDrive(a.cfg.Sync.GraphURL, backup.TokenFrom(id, ""), backup.WithOneDriveLogger(a.logger))
	return backup.NewSyncer(drive, a.engine,
		backup.WithFolder(a.cfg.Sync.FolderID),
		backup.WithDatabase(a.store),
		backup.WithSyncLogger(a.logger),
	)
}

// withSync is withDay for commands that talk to the remote.
func withSync(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app, s *backup.Syncer, date model.Date) error) error {
	date, err := opts.day()
	if err != nil {
		return err
	}
	a, err := openApp(opts, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	s, err := a.syncer(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()
	err = fn(ctx, a, s, date)
	if errors.Is(err, backup.ErrNotSignedIn) {
		return fmt.Errorf("%w: run `dayplan login` first", err)
	}
	return err
}

func newBackupCmd(opts *globalOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload the day, or the whole database with --full, to OneDrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSync(cmd, opts, func(ctx context.Context, _ *app, s *backup.Syncer, date model.Date) error {
				var (
					file backup.RemoteFile
					err  error
				)
				if full {
					file, err = s.BackupDatabase(ctx)
				} else {
					file, err = s.Backup(ctx, date)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s)\n", file.Name, file.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "upload a copy of the whole database")
	return cmd
}

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file-id>",
		Short: "Replace the day with a snapshot downloaded from OneDrive",
		Long: `Download the snapshot <file-id> (see "dayplan remote ls") and replace the
tasks of the day with it. Nothing changes locally unless the whole snapshot
downloads and decodes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSync(cmd, opts, func(ctx context.Context, _ *app, s *backup.Syncer, date model.Date) error {
				if err := s.Restore(ctx, date, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s restored from %s\n", date, args[0])
				return nil
			})
		},
	}
}

func newRemoteCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect the OneDrive backup folder",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List files in the backup folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSync(cmd, opts, func(ctx context.Context, _ *app, s *backup.Syncer, _ model.Date) error {
				files, err := s.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSIZE\tMODIFIED")
				for _, f := range files {
					name := f.Name
					if f.IsFolder {
						name += "/"
					}
					modified := "-"
					if !f.Modified.IsZero() {
						modified = f.Modified.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.ID, name, f.Size, modified)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to OneDrive with a device code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := a.identity(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
			defer cancel()
			cred, err := id.SignIn(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", cred.Account)
			return nil
		},
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored OneDrive sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := a.identity(cmd)
			if err != nil {
				return err
			}
			if err := id.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}
