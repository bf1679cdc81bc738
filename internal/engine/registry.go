package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowbridge/internal/validation"
	"github.com/rendis/flowbridge/pkg/schema"
)

// FlowRegistry holds validated flow definitions by ID.
type FlowRegistry struct {
	mu        sync.RWMutex
	flows     map[string]*schema.FlowDefinition
	validator validation.Validator
}

// NewFlowRegistry creates an empty registry. A nil validator accepts every definition.
func NewFlowRegistry(v validation.Validator) *FlowRegistry {
	return &FlowRegistry{
		flows:     make(map[string]*schema.FlowDefinition),
		validator: v,
	}
}

// Register validates and adds a definition. Returns error on duplicate ID.
func (r *FlowRegistry) Register(def *schema.FlowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "flow definition is nil")
	}
	if r.validator != nil {
		if err := r.validator.ValidateDefinition(def); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[def.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "flow %q already registered", def.ID)
	}
	r.flows[def.ID] = def
	return nil
}

// Get retrieves a definition by ID.
func (r *FlowRegistry) Get(id string) (*schema.FlowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.flows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "flow %q not registered", id)
	}
	return def, nil
}

// IDs returns the registered flow IDs, sorted.
func (r *FlowRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadFile decodes and registers the definition stored at path.
func (r *FlowRegistry) LoadFile(path string) (*schema.FlowDefinition, error) {
	def, err := ReadDefinition(path)
	if err != nil {
		return nil, err
	}
	if err := r.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

// LoadDir registers every .yaml, .yml and .json file in dir, in name order.
func (r *FlowRegistry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeConfiguration, "read flows directory %q", dir).WithCause(err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		if _, err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// ReadDefinition reads and decodes one definition file without registering it.
func ReadDefinition(path string) (*schema.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "read flow definition %q", path).WithCause(err)
	}
	def, err := DecodeDefinition(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// DecodeDefinition parses a definition. ext selects the format: ".json" is
// JSON, anything else YAML.
func DecodeDefinition(data []byte, ext string) (*schema.FlowDefinition, error) {
	var def schema.FlowDefinition
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode flow definition").WithCause(err)
	}
	return &def, nil
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
