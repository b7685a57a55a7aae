package assessment

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// defaultImage is shown for lessons without their own reference chart.
const defaultImage = "all_letters.png"

//go:embed catalog.schema.json
var catalogSchemaJSON []byte

const catalogSchemaURL = "schema://catalog.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Catalog holds the lessons and their assessment definitions. It is
// read-only after construction.
type Catalog struct {
	lessons []Lesson
	defs    map[int]Definition
}

// NewCatalog builds a catalog. Definitions may omit lessons; lessons may
// lack a definition. Task fields are validated here; an empty task list is
// reported when the definition is used.
func NewCatalog(lessons []Lesson, defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[int]Definition, len(defs))}

	seen := make(map[int]bool, len(lessons))
	for _, l := range lessons {
		if l.ID <= 0 {
			return nil, fmt.Errorf("lesson %q: id must be positive", l.Title)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("lesson %d: duplicate id", l.ID)
		}
		seen[l.ID] = true
		if l.Image == "" {
			l.Image = defaultImage
		}
		c.lessons = append(c.lessons, l)
	}
	sort.Slice(c.lessons, func(i, j int) bool { return c.lessons[i].ID < c.lessons[j].ID })

	for _, d := range defs {
		if _, dup := c.defs[d.LessonID]; dup {
			return nil, fmt.Errorf("lesson %d: duplicate assessment", d.LessonID)
		}
		if d.TimeWindow <= 0 {
			return nil, &ConfigurationError{LessonID: d.LessonID, Err: errors.New("time window must be positive")}
		}
		for i, t := range d.Tasks {
			if err := validateTask(t); err != nil {
				return nil, &ConfigurationError{LessonID: d.LessonID, Err: fmt.Errorf("task %d: %w", i, err)}
			}
		}
		if d.Title == "" {
			d.Title = fmt.Sprintf("Lesson %d Assessment", d.LessonID)
		}
		d.Tasks = append([]Task(nil), d.Tasks...)
		c.defs[d.LessonID] = d
	}
	return c, nil
}

func validateTask(t Task) error {
	if t.TargetLabel == "" {
		return errors.New("empty target label")
	}
	if t.MinRepetitions < 1 {
		return fmt.Errorf("min repetitions %d < 1", t.MinRepetitions)
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("min confidence %v outside [0, 1]", t.MinConfidence)
	}
	return nil
}

// Lessons returns all lessons ordered by ID.
func (c *Catalog) Lessons() []Lesson {
	return append([]Lesson(nil), c.lessons...)
}

// Lesson returns the lesson with the given ID.
func (c *Catalog) Lesson(id int) (Lesson, bool) {
	for _, l := range c.lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// Definition returns the assessment for a lesson. It fails with a
// ConfigurationError when the lesson is unknown or has no tasks.
func (c *Catalog) Definition(lessonID int) (Definition, error) {
	d, ok := c.defs[lessonID]
	if !ok {
		return Definition{}, &ConfigurationError{LessonID: lessonID, Err: ErrUnknownLesson}
	}
	if len(d.Tasks) == 0 {
		return Definition{}, &ConfigurationError{LessonID: lessonID, Err: ErrNoTasks}
	}
	d.Tasks = append([]Task(nil), d.Tasks...)
	return d, nil
}

// LessonTitle returns the display title of a lesson, or "" if unknown.
func (c *Catalog) LessonTitle(id int) string {
	l, _ := c.Lesson(id)
	return l.Title
}

// WithPassConfidence returns a copy of c where every task requires at least
// threshold confidence. A non-positive threshold returns c unchanged.
func (c *Catalog) WithPassConfidence(threshold float64) *Catalog {
	if threshold <= 0 {
		return c
	}
	if threshold > 1 {
		threshold = 1
	}
	out := &Catalog{lessons: c.Lessons(), defs: make(map[int]Definition, len(c.defs))}
	for id, d := range c.defs {
		tasks := make([]Task, len(d.Tasks))
		for i, t := range d.Tasks {
			t.MinConfidence = threshold
			tasks[i] = t
		}
		d.Tasks = tasks
		out.defs[id] = d
	}
	return out
}

// catalogFile mirrors the on-disk catalog document.
type catalogFile struct {
	Lessons []lessonFile `koanf:"lessons"`
}

type lessonFile struct {
	ID          int             `koanf:"id"`
	Title       string          `koanf:"title"`
	Description string          `koanf:"description"`
	Image       string          `koanf:"image"`
	Assessment  *assessmentFile `koanf:"assessment"`
}

type assessmentFile struct {
	Title             string  `koanf:"title"`
	TimeWindowSeconds float64 `koanf:"time_window_seconds"`
	Tasks             []Task  `koanf:"tasks"`
}

// LoadCatalog reads a YAML or JSON catalog file and validates it against the
// embedded schema.
func LoadCatalog(path string) (*Catalog, error) {
	k := koanf.New(".")
	// JSON documents are valid YAML.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	if err := validateDocument(k.Raw()); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	var doc catalogFile
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	var lessons []Lesson
	var defs []Definition
	for _, l := range doc.Lessons {
		lessons = append(lessons, Lesson{ID: l.ID, Title: l.Title, Description: l.Description, Image: l.Image})
		if l.Assessment == nil {
			continue
		}
		defs = append(defs, Definition{
			LessonID:   l.ID,
			Title:      l.Assessment.Title,
			TimeWindow: time.Duration(l.Assessment.TimeWindowSeconds * float64(time.Second)),
			Tasks:      l.Assessment.Tasks,
		})
	}
	return NewCatalog(lessons, defs)
}

// validateDocument checks a parsed catalog against the embedded schema.
func validateDocument(raw map[string]any) error {
	schema, err := catalogSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so numbers and maps have the types the
	// validator expects.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(catalogSchemaJSON, &def); err != nil {
			schemaErr = fmt.Errorf("parse catalog schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(catalogSchemaURL, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(catalogSchemaURL)
	})
	return compiledSchema, schemaErr
}
