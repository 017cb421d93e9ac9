package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dayplan/internal/commands"
	"github.com/sandeepkv93/dayplan/internal/engine"
	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/update"
	"github.com/sandeepkv93/dayplan/internal/views"
)

// withDay opens the app, resolves --date and runs fn under the engine
// timeout.
func withDay(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app, date model.Date) error) error {
	date, err := opts.day()
	if err != nil {
		return err
	}
	a, err := openApp(opts, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := a.ctx(cmd.Context())
	defer cancel()
	return fn(ctx, a, date)
}

// taskAt finds the task at the position raw names ("first", "last" or a
// number) on date.
func taskAt(ctx context.Context, eng *engine.Engine, date model.Date, raw string) (model.Task, error) {
	target, err := commands.ParseTarget(raw)
	if err != nil {
		return model.Task{}, err
	}
	snap, err := eng.Snapshot(ctx, date)
	if err != nil {
		return model.Task{}, err
	}
	for _, t := range snap.Tasks {
		if t.Position == target.Position {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("no task at position %s on %s", target, date)
}

func printTimeline(w io.Writer, snap feed.Snapshot) {
	rows := make([]views.TimelineRow, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		rows = append(rows, views.TimelineRow{
			Position: t.Position,
			Start:    t.StartTime.String(),
			End:      t.EndTime.String(),
			Minutes:  t.Duration,
			Name:     t.Name,
			Type:     string(t.Type),
			Done:     snap.Completed[t.ID],
			Boundary: t.IsSentinel(),
			Recurs:   t.IsRecurring,
			Reminder: t.ReminderTime != nil,
		})
	}
	fmt.Fprintln(w, views.RenderTimeline(views.TimelineData{Date: snap.Date.String(), Rows: rows}))
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var positions bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the tasks of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				snap, err := a.engine.Snapshot(ctx, date)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if positions {
					for _, t := range snap.Tasks {
						fmt.Fprintf(out, "%s\t%s\n", commands.Target{Position: t.Position}, t.Name)
					}
					return nil
				}
				printTimeline(out, snap)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&positions, "positions", false, "print only positions and names")
	return cmd
}

// taskFlags are the optional task fields shared by add and edit.
type taskFlags struct {
	notes    string
	kind     string
	reminder string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
	kinds := make([]string, 0, len(model.TaskTypes()))
	for _, k := range model.TaskTypes() {
		kinds = append(kinds, string(k))
	}
	cmd.Flags().StringVar(&f.kind, "type", "", "task type: "+strings.Join(kinds, ", "))
	cmd.Flags().StringVar(&f.reminder, "reminder", "", "reminder time as HH:MM")
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "add <after> <minutes> <name...>",
		Short: "Insert a task after the task at a position",
		Long: `Insert a task directly after the task at <after> ("first", "last" or a
position). The new task takes its time from the start of the task that
currently follows, which shrinks by the same amount.`,
		Example: `  dayplan add first 20 Stretch
  dayplan add 3 45 Review pull requests --type quick --reminder 13:55`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := update.TaskFormData{
				Name:     strings.Join(args[2:], " "),
				Duration: args[1],
				Notes:    flags.notes,
				Type:     flags.kind,
				Reminder: flags.reminder,
			}
			draft, err := form.Apply(model.Task{})
			if err != nil {
				return err
			}
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				ref, err := taskAt(ctx, a.engine, date, args[0])
				if err != nil {
					return err
				}
				inserted, err := a.engine.Insert(ctx, date, ref.ID, draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %q at position %d (%s-%s)\n",
					inserted.Name, inserted.Position, inserted.StartTime, inserted.EndTime)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	var (
		flags   taskFlags
		name    string
		minutes string
		end     string
	)
	cmd := &cobra.Command{
		Use:   "edit <position>",
		Short: "Change a task; only the given fields change",
		Long: `Change the task at <position>. A new length or end time moves the
task's end, and only the task right after it absorbs the difference.`,
		Example: `  dayplan edit 2 --minutes 200
  dayplan edit 4 --name "Inbox" --reminder 14:00
  dayplan edit first --end 06:30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				current, err := taskAt(ctx, a.engine, date, args[0])
				if err != nil {
					return err
				}
				form := update.FormDataOf(current)
				changed := cmd.Flags().Changed
				if changed("name") {
					form.Name = name
				}
				if changed("minutes") {
					form.Duration = minutes
				}
				if changed("notes") {
					form.Notes = flags.notes
				}
				if changed("type") {
					form.Type = flags.kind
				}
				if changed("reminder") {
					form.Reminder = flags.reminder
				}
				edited, err := form.Apply(current)
				if err != nil {
					return err
				}
				if changed("end") {
					at, err := model.ParseClock(end)
					if err != nil {
						return fmt.Errorf("--end: %w", err)
					}
					edited.EndTime = at
				}
				if err := a.engine.Edit(ctx, date, edited); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "edited %q\n", edited.Name)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&minutes, "minutes", "", "new length in minutes")
	cmd.Flags().StringVar(&end, "end", "", "new end time as HH:MM")
	cmd.MarkFlagsMutuallyExclusive("minutes", "end")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Remove a task; later tasks move up one position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				t, err := taskAt(ctx, a.engine, date, args[0])
				if err != nil {
					return err
				}
				if err := a.engine.Delete(ctx, date, t.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", t.Name)
				return nil
			})
		},
	}
}

func newDoneCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <position>",
		Short: "Toggle whether a task is done for the day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				t, err := taskAt(ctx, a.engine, date, args[0])
				if err != nil {
					return err
				}
				done, err := a.engine.ToggleCompletion(ctx, date, t.ID)
				if err != nil {
					return err
				}
				state := "open"
				if done {
					state = "done"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%q is %s\n", t.Name, state)
				return nil
			})
		},
	}
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the day with the default routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDay(cmd, opts, func(ctx context.Context, a *app, date model.Date) error {
				if err := a.engine.BulkReplace(ctx, date, model.DefaultDay(date)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reset to the default routine\n", date)
				return nil
			})
		},
	}
}
