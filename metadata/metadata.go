package metadata

import (
	"encoding/json"

	"github.com/wippyai/wacli/errors"
)

// FormatVersion is the only payload format version this tool reads and
// writes. Bump together with the metadata section name.
const FormatVersion = 1

// ValueType names the kind of value an argument accepts.
const (
	ValueString = "string"
	ValueNumber = "number"
	ValueBool   = "bool"
	ValuePath   = "path"
)

// ArgSchema describes one argument or flag of a command. Optional string
// fields are pointers so absence survives a JSON round trip.
type ArgSchema struct {
	Name           string   `json:"name"`
	Short          *string  `json:"short,omitempty"`
	Long           *string  `json:"long,omitempty"`
	Help           *string  `json:"help,omitempty"`
	Required       bool     `json:"required,omitempty"`
	DefaultValue   *string  `json:"default-value,omitempty"`
	Env            *string  `json:"env,omitempty"`
	ValueName      *string  `json:"value-name,omitempty"`
	TakesValue     bool     `json:"takes-value,omitempty"`
	Multiple       bool     `json:"multiple,omitempty"`
	ValueType      string   `json:"value-type,omitempty"`
	PossibleValues []string `json:"possible-values,omitempty"`
	ConflictsWith  []string `json:"conflicts-with,omitempty"`
	Requires       []string `json:"requires,omitempty"`
	Hidden         bool     `json:"hidden,omitempty"`
}

// CommandSchema is the full self-description a command plugin embeds.
type CommandSchema struct {
	Name        string      `json:"name"`
	Summary     string      `json:"summary,omitempty"`
	Usage       string      `json:"usage,omitempty"`
	Aliases     []string    `json:"aliases,omitempty"`
	Version     string      `json:"version,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
	Description *string     `json:"description,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
	Args        []ArgSchema `json:"args,omitempty"`
}

// CommandMeta is the minimal identity block present even when a plugin
// ships no full schema.
type CommandMeta struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Version string `json:"version,omitempty"`
}

// Metadata is the payload of the command metadata custom section.
type Metadata struct {
	FormatVersion int            `json:"format-version"`
	Meta          CommandMeta    `json:"meta"`
	Schema        *CommandSchema `json:"schema,omitempty"`
}

// AppMeta describes the application the registry is generated for.
type AppMeta struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// Decode parses a metadata section payload and checks its format version
// and internal consistency.
func Decode(payload []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseMetadata, errors.KindInvalidData, err, "decode metadata payload")
	}
	if m.FormatVersion != FormatVersion {
		return nil, errors.New(errors.PhaseMetadata, errors.KindUnsupported).
			Detail("format version %d, want %d", m.FormatVersion, FormatVersion).
			Value(m.FormatVersion).
			Build()
	}
	if m.Meta.Name == "" {
		return nil, errors.InvalidData(errors.PhaseMetadata, []string{"meta", "name"}, "empty command name")
	}
	if m.Schema != nil && m.Schema.Name != m.Meta.Name {
		return nil, errors.Mismatch(errors.PhaseMetadata, "schema name", m.Schema.Name, m.Meta.Name)
	}
	return &m, nil
}

// Encode serializes a metadata payload, stamping the format version.
func (m *Metadata) Encode() ([]byte, error) {
	m.FormatVersion = FormatVersion
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMetadata, errors.KindInvalidData, err, "encode metadata payload")
	}
	return data, nil
}

// EffectiveSchema returns the full schema, synthesizing one from the meta
// block when the plugin embedded none.
func (m *Metadata) EffectiveSchema() CommandSchema {
	if m.Schema != nil {
		return *m.Schema
	}
	return CommandSchema{
		Name:    m.Meta.Name,
		Summary: m.Meta.Summary,
		Version: m.Meta.Version,
	}
}
