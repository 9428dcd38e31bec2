package registry

import "github.com/wippyai/wacli/metadata"

// Loc is a resolved string location in the table blob.
type Loc struct {
	Offset uint32
	Len    uint32
}

// StringTable interns every string the generated module references into
// one contiguous blob. Identical content resolves to one location; the
// empty string is a permanent sentinel at (0,0) and is never stored, so
// an absent optional string can never collide with real content.
type StringTable struct {
	entries map[string]Loc
	blob    []byte
}

func NewStringTable() *StringTable {
	return &StringTable{entries: map[string]Loc{}}
}

// Intern stores s if unseen and returns its location. Idempotent.
func (t *StringTable) Intern(s string) Loc {
	if s == "" {
		return Loc{}
	}
	if loc, ok := t.entries[s]; ok {
		return loc
	}
	loc := Loc{Offset: uint32(len(t.blob)), Len: uint32(len(s))}
	t.blob = append(t.blob, s...)
	t.entries[s] = loc
	return loc
}

// Lookup returns the location of s, or (0,0) for unseen or empty strings.
func (t *StringTable) Lookup(s string) Loc {
	return t.entries[s]
}

// Len returns the blob size in bytes.
func (t *StringTable) Len() int {
	return len(t.blob)
}

// Bytes returns the blob. Callers must not mutate it.
func (t *StringTable) Bytes() []byte {
	return t.blob
}

// InternSchemas interns every string field of the app descriptor and of
// every command schema. The full pass must complete before any code
// generation: emitted instructions embed literal offsets, so the table
// cannot grow afterwards.
func (t *StringTable) InternSchemas(app metadata.AppMeta, cmds []metadata.CommandSchema) {
	t.Intern(app.Name)
	t.Intern(app.Version)
	t.Intern(app.Description)

	for _, c := range cmds {
		t.Intern(c.Name)
		t.Intern(c.Summary)
		t.Intern(c.Usage)
		for _, a := range c.Aliases {
			t.Intern(a)
		}
		t.Intern(c.Version)
		t.internOpt(c.Description)
		for _, e := range c.Examples {
			t.Intern(e)
		}
		for _, arg := range c.Args {
			t.Intern(arg.Name)
			t.internOpt(arg.Short)
			t.internOpt(arg.Long)
			t.internOpt(arg.Help)
			t.internOpt(arg.DefaultValue)
			t.internOpt(arg.Env)
			t.internOpt(arg.ValueName)
			t.Intern(arg.ValueType)
			for _, v := range arg.PossibleValues {
				t.Intern(v)
			}
			for _, v := range arg.ConflictsWith {
				t.Intern(v)
			}
			for _, v := range arg.Requires {
				t.Intern(v)
			}
		}
	}
}

func (t *StringTable) internOpt(s *string) {
	if s != nil {
		t.Intern(*s)
	}
}
