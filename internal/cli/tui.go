package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/reminder"
	"github.com/sandeepkv93/dayplan/internal/update"
)

// runTUI opens the planner on --date. A store without any tasks is seeded
// with the default routine first.
func runTUI(ctx context.Context, opts *globalOptions) error {
	date, err := opts.day()
	if err != nil {
		return err
	}
	a, err := openApp(opts, appOptions{reminders: true})
	if err != nil {
		return err
	}
	defer a.Close()

	setupCtx, cancel := a.ctx(ctx)
	defer cancel()
	if seeded, err := a.engine.SeedIfEmpty(setupCtx, date); err != nil {
		return err
	} else if seeded {
		a.logger.Info("seeded empty store with the default routine", "date", date.String())
	}

	modelOpts := []update.Option{
		update.WithTimeout(a.timeout),
		update.WithDate(date),
		update.WithToday(opts.today),
	}
	if a.reminders != nil {
		a.reminders.Start()
		today := opts.today()
		if armed, err := a.engine.ArmReminders(setupCtx, today); err != nil {
			a.logger.Warn("arm reminders failed", "date", today.String(), "error", err)
		} else {
			a.logger.Debug("reminders armed", "date", today.String(), "count", armed)
		}
		var notifier reminder.Notifier = reminder.NoopNotifier{}
		if a.cfg.Reminders.Desktop {
			notifier = reminder.ExecNotifier{}
		}
		modelOpts = append(modelOpts,
			update.WithReminders(a.reminders.C()),
			update.WithNotifier(notifier, a.cfg.Reminders.Desktop),
		)
	}

	program := tea.NewProgram(update.NewModel(a.engine, modelOpts...), tea.WithAltScreen(), tea.WithContext(ctx))
	start := time.Now()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dayplan ui: %w", err)
	}
	a.logger.Info("ui closed", "date", date.String(), "elapsed", time.Since(start).Round(time.Second))
	return nil
}
