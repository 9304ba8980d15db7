package settings

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const GroupGeneral = "general"

type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, error)
	SetOption(ctx context.Context, name, value string) error
}

// Setting describes one registered option and its admin field.
type Setting struct {
	Group       string
	Name        string
	Label       string
	Default     string
	Placeholder string
	Description string
	Validate    func(string) ValidationResult
}

// FieldArgs are the per-render field arguments.
type FieldArgs struct {
	LabelFor string
}

// SaveResult reports what happened to one submitted field.
type SaveResult struct {
	Name     string
	Accepted bool
	Stored   string
}

type Manager struct {
	store OptionStore

	mu       sync.RWMutex
	order    []string
	settings map[string]Setting
}

func NewManager(store OptionStore) *Manager {
	return &Manager{store: store, settings: map[string]Setting{}}
}

func (m *Manager) Register(s Setting) error {
	if s.Name == "" || s.Group == "" {
		return errors.New("setting needs a name and a group")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[s.Name]; ok {
		return fmt.Errorf("setting %s already registered", s.Name)
	}
	m.settings[s.Name] = s
	m.order = append(m.order, s.Name)
	return nil
}

// RegisterMeasurementID registers the GA4 Measurement ID under the general
// settings group.
func RegisterMeasurementID(m *Manager) error {
	return m.Register(Setting{
		Group:       GroupGeneral,
		Name:        MeasurementIDOption,
		Label:       "Google Analytics 4 ID",
		Default:     "",
		Placeholder: "G-XXXXXXX",
		Description: "Enter your Google Analytics 4 Measurement ID (e.g., G-XXXXXXXXXX).",
		Validate:    ValidateMeasurementID,
	})
}

func (m *Manager) lookup(name string) (Setting, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[name]
	return s, ok
}

// Group returns the group's settings in registration order.
func (m *Manager) Group(group string) []Setting {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Setting
	for _, name := range m.order {
		if s := m.settings[name]; s.Group == group {
			out = append(out, s)
		}
	}
	return out
}

// Get returns the stored value, or the registered default when the option
// was never saved.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	s, _ := m.lookup(name)
	v, err := m.store.GetOption(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return s.Default, nil
	}
	if err != nil {
		return s.Default, err
	}
	return v, nil
}

// Save sanitizes and persists every field of the group present in form.
// Rejected input is stored as "" without an error.
func (m *Manager) Save(ctx context.Context, group string, form url.Values) ([]SaveResult, error) {
	var results []SaveResult
	for _, s := range m.Group(group) {
		if _, ok := form[s.Name]; !ok {
			continue
		}
		res := ValidationResult{OK: true, Value: form.Get(s.Name)}
		if s.Validate != nil {
			res = s.Validate(form.Get(s.Name))
		}
		if err := m.store.SetOption(ctx, s.Name, res.Value); err != nil {
			return results, fmt.Errorf("save %s: %w", s.Name, err)
		}
		if !res.OK {
			log.Debug().Str("setting", s.Name).Msg("invalid input reset to empty")
		}
		results = append(results, SaveResult{Name: s.Name, Accepted: res.OK, Stored: res.Value})
	}
	return results, nil
}

type fieldView struct {
	ID          string
	Name        string
	Label       string
	Value       string
	Placeholder string
	Description string
	Field       template.HTML
}

// RenderField writes the setting's text input pre-filled with the stored value.
func (m *Manager) RenderField(ctx context.Context, w io.Writer, name string, args FieldArgs) error {
	s, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("setting %s not registered", name)
	}
	v, err := m.Get(ctx, name)
	if err != nil {
		return err
	}
	id := args.LabelFor
	if id == "" {
		id = s.Name
	}
	return templates.ExecuteTemplate(w, "text-field", fieldView{
		ID:          id,
		Name:        s.Name,
		Value:       v,
		Placeholder: s.Placeholder,
		Description: s.Description,
	})
}

// RenderGroup writes a form table with one row per setting of the group.
func (m *Manager) RenderGroup(ctx context.Context, w io.Writer, group string) error {
	var rows []fieldView
	for _, s := range m.Group(group) {
		var buf bytes.Buffer
		if err := m.RenderField(ctx, &buf, s.Name, FieldArgs{LabelFor: s.Name}); err != nil {
			return err
		}
		rows = append(rows, fieldView{
			ID:    s.Name,
			Label: s.Label,
			// already escaped by the text-field template
			Field: template.HTML(buf.String()),
		})
	}
	return templates.ExecuteTemplate(w, "group", rows)
}
