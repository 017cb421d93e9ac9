package update

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/dayplan/internal/model"
)

var (
	ErrEmptyName       = errors.New("update: name is required")
	ErrInvalidDuration = errors.New("update: duration must be a positive number of minutes")
	ErrInvalidReminder = errors.New("update: reminder must be HH:MM")
	ErrInvalidType     = errors.New("update: unknown task type")
)

// TaskFormData is the raw text of the edit form.
type TaskFormData struct {
	Name     string
	Notes    string
	Type     string
	Duration string
	Reminder string
}

func FormDataOf(t model.Task) TaskFormData {
	f := TaskFormData{
		Name:     t.Name,
		Notes:    t.Notes,
		Type:     string(t.Type),
		Duration: strconv.Itoa(t.Duration),
	}
	if t.ReminderTime != nil {
		f.Reminder = t.ReminderTime.String()
	}
	return f
}

// Validate checks the form without touching the engine.
func (f TaskFormData) Validate() error {
	_, err := f.Apply(model.Task{})
	return err
}

// Apply writes the form onto t. Times are left for the engine to place;
// only Duration carries the requested length.
func (f TaskFormData) Apply(t model.Task) (model.Task, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return t, ErrEmptyName
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(f.Duration))
	if err != nil || minutes <= 0 {
		return t, fmt.Errorf("%w: %q", ErrInvalidDuration, f.Duration)
	}
	kind, err := model.ParseTaskType(f.Type)
	if err != nil {
		return t, fmt.Errorf("%w: %q", ErrInvalidType, f.Type)
	}
	var reminder *model.Clock
	if raw := strings.TrimSpace(f.Reminder); raw != "" {
		at, err := model.ParseClock(raw)
		if err != nil {
			return t, fmt.Errorf("%w: %q", ErrInvalidReminder, raw)
		}
		reminder = &at
	}
	t.Name = name
	t.Notes = strings.TrimSpace(f.Notes)
	t.Type = kind
	t.Duration = minutes
	t.ReminderTime = reminder
	return t, nil
}

type formMode int

const (
	formEdit formMode = iota
	formInsert
)

const (
	fieldName = iota
	fieldType
	fieldDuration
	fieldReminder
	formFieldCount
)

var formLabels = [formFieldCount]string{"name", "type", "minutes", "reminder"}

// FormState tracks the open form. The notes area comes after the inputs in
// focus order.
type FormState struct {
	Mode   formMode
	Task   model.Task
	Focus  int
	ErrMsg string
}

func (m Model) formData() TaskFormData {
	return TaskFormData{
		Name:     m.formInputs[fieldName].Value(),
		Notes:    m.notesArea.Value(),
		Type:     m.formInputs[fieldType].Value(),
		Duration: m.formInputs[fieldDuration].Value(),
		Reminder: m.formInputs[fieldReminder].Value(),
	}
}

func (m Model) openFullEdit(t model.Task, mode formMode) Model {
	data := FormDataOf(t)
	if mode == formInsert {
		data = TaskFormData{Type: string(model.TaskTypeUndefined), Duration: "30"}
	}
	m.formInputs[fieldName].SetValue(data.Name)
	m.formInputs[fieldType].SetValue(data.Type)
	m.formInputs[fieldDuration].SetValue(data.Duration)
	m.formInputs[fieldReminder].SetValue(data.Reminder)
	for i := range m.formInputs {
		m.formInputs[i].CursorEnd()
	}
	m.notesArea.SetValue(data.Notes)
	m.Form = FormState{Mode: mode, Task: t}
	m.Active = ComponentFullEdit
	return m.focusFormField(fieldName)
}

func (m Model) openQuickEdit(t model.Task) Model {
	m.durationInput.SetValue(strconv.Itoa(t.Duration))
	m.durationInput.CursorEnd()
	m.durationInput.Focus()
	m.Form = FormState{Mode: formEdit, Task: t}
	m.Active = ComponentQuickEdit
	return m
}

func (m Model) focusFormField(i int) Model {
	for j := range m.formInputs {
		m.formInputs[j].Blur()
	}
	m.notesArea.Blur()
	m.Form.Focus = i
	if i < formFieldCount {
		m.formInputs[i].Focus()
	} else {
		m.notesArea.Focus()
	}
	return m
}

func (m Model) handleFullEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.closeOverlay(), nil
	case "tab":
		return m.focusFormField((m.Form.Focus + 1) % (formFieldCount + 1)), nil
	case "shift+tab":
		return m.focusFormField((m.Form.Focus + formFieldCount) % (formFieldCount + 1)), nil
	case "ctrl+s":
		return m.submitFullEdit()
	case "enter":
		if m.Form.Focus < formFieldCount {
			return m.submitFullEdit()
		}
	}
	var cmd tea.Cmd
	if m.Form.Focus < formFieldCount {
		m.formInputs[m.Form.Focus], cmd = m.formInputs[m.Form.Focus].Update(msg)
	} else {
		m.notesArea, cmd = m.notesArea.Update(msg)
	}
	return m, cmd
}

func (m Model) submitFullEdit() (Model, tea.Cmd) {
	task, err := m.formData().Apply(m.Form.Task)
	if err != nil {
		m.Form.ErrMsg = err.Error()
		return m, nil
	}
	mode, ref := m.Form.Mode, m.Form.Task
	m = m.closeOverlay()
	if mode == formInsert {
		draft := model.Task{
			Name:         task.Name,
			Notes:        task.Notes,
			Type:         task.Type,
			Duration:     task.Duration,
			ReminderTime: task.ReminderTime,
		}
		return m.startOp(insertCmd(m.planner, m.timeout, m.Date, ref.ID, draft))
	}
	return m.startOp(editCmd(m.planner, m.timeout, m.Date, task))
}

func (m Model) handleQuickEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.closeOverlay(), nil
	case "enter":
		data := FormDataOf(m.Form.Task)
		data.Duration = m.durationInput.Value()
		task, err := data.Apply(m.Form.Task)
		if err != nil {
			m.Form.ErrMsg = err.Error()
			return m, nil
		}
		m = m.closeOverlay()
		return m.startOp(editCmd(m.planner, m.timeout, m.Date, task))
	}
	var cmd tea.Cmd
	m.durationInput, cmd = m.durationInput.Update(msg)
	return m, cmd
}
