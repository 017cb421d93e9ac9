package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/dayplan/internal/feed"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/reminder"
)

// Planner is the engine surface the UI drives.
type Planner interface {
	Insert(ctx context.Context, date model.Date, referenceID int64, draft model.Task) (model.Task, error)
	Edit(ctx context.Context, date model.Date, edited model.Task) error
	Delete(ctx context.Context, date model.Date, id int64) error
	BulkReplace(ctx context.Context, date model.Date, tasks []model.Task) error
	ToggleCompletion(ctx context.Context, date model.Date, id int64) (bool, error)
	ObserveResolvedTasks(ctx context.Context, date model.Date) (<-chan feed.Snapshot, func())
}

// ActiveUiComponent is the overlay that currently owns the keyboard.
type ActiveUiComponent string

const (
	ComponentNone          ActiveUiComponent = "none"
	ComponentQuickEdit     ActiveUiComponent = "quick_edit"
	ComponentFullEdit      ActiveUiComponent = "full_edit"
	ComponentDetails       ActiveUiComponent = "details"
	ComponentLongPressMenu ActiveUiComponent = "menu"
)

type StatusBar struct {
	Text    string
	IsError bool
	seq     int
}

type GlobalKeyMap struct {
	PrevDay string
	NextDay string
	Today   string
	Palette string
	Help    string
	Quit    string
	Details string
	Menu    string
	Quick   string
	Full    string
	Insert  string
	Toggle  string
	Delete  string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Model struct {
	Date        model.Date
	Tasks       []model.Task
	Completed   map[int64]bool
	Cursor      int
	Active      ActiveUiComponent
	Form        FormState
	Menu        MenuState
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	ReminderLog []reminder.Event
	Quitting    bool
	LastError   error
	Busy        int

	DesktopEnabled bool
	notifier       reminder.Notifier

	planner   Planner
	timeout   time.Duration
	today     func() model.Date
	reminders <-chan reminder.Event
	snapshots <-chan feed.Snapshot
	stopFeed  func()
	statusTTL time.Duration

	commandInput  textinput.Model
	durationInput textinput.Model
	formInputs    [formFieldCount]textinput.Model
	notesArea     textarea.Model
	detailView    viewport.Model
	busySpinner   spinner.Model
	helpModel     help.Model
}

type Option func(*Model)

// WithTimeout bounds every engine call made from the UI.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithDate(date model.Date) Option {
	return func(m *Model) {
		if !date.IsZero() {
			m.Date = date
		}
	}
}

func WithToday(today func() model.Date) Option {
	return func(m *Model) {
		if today != nil {
			m.today = today
		}
	}
}

// WithReminders makes fired reminders show up in the status line.
func WithReminders(ch <-chan reminder.Event) Option {
	return func(m *Model) { m.reminders = ch }
}

func WithNotifier(n reminder.Notifier, enabled bool) Option {
	return func(m *Model) {
		if n != nil {
			m.notifier = n
		}
		m.DesktopEnabled = enabled
	}
}

func WithStatusTTL(d time.Duration) Option {
	return func(m *Model) { m.statusTTL = d }
}

func NewModel(planner Planner, opts ...Option) Model {
	m := Model{
		Completed: make(map[int64]bool),
		Active:    ComponentNone,
		planner:   planner,
		timeout:   5 * time.Second,
		today:     func() model.Date { return model.DateOf(time.Now()) },
		notifier:  reminder.NoopNotifier{},
		statusTTL: 4 * time.Second,
		Keys: GlobalKeyMap{
			PrevDay: "[",
			NextDay: "]",
			Today:   "t",
			Palette: "/",
			Help:    "?",
			Quit:    "q",
			Details: "enter",
			Menu:    "m",
			Quick:   "e",
			Full:    "E",
			Insert:  "a",
			Toggle:  "x",
			Delete:  "d",
		},
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.Date.IsZero() {
		m.Date = m.today()
	}
	m.initBubbleComponents()
	return m
}

func (m *Model) initBubbleComponents() {
	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.durationInput = textinput.New()
	m.durationInput.Prompt = "minutes> "
	m.durationInput.CharLimit = 4
	m.durationInput.Width = 8

	for i, label := range formLabels {
		in := textinput.New()
		in.Prompt = label + ": "
		in.CharLimit = 128
		in.Width = 40
		m.formInputs[i] = in
	}
	m.formInputs[fieldType].Placeholder = "main, helper, quick, basics, undefined"
	m.formInputs[fieldReminder].Placeholder = "HH:MM (optional)"

	m.notesArea = textarea.New()
	m.notesArea.SetWidth(54)
	m.notesArea.SetHeight(6)
	m.notesArea.ShowLineNumbers = false
	m.notesArea.Placeholder = "Notes (markdown)"

	m.detailView = viewport.New(54, 12)

	m.busySpinner = spinner.New()
	m.busySpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Tasks) {
		return model.Task{}, false
	}
	return m.Tasks[m.Cursor], true
}

// taskAt finds a task of the current day by position.
func (m Model) taskAt(position int) (model.Task, bool) {
	for _, t := range m.Tasks {
		if t.Position == position {
			return t, true
		}
	}
	return model.Task{}, false
}
