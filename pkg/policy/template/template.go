package template

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"fedgrid-hq/triton/pkg/policy"
)

// placeholderPattern matches {{name}} placeholders in the policy
// document. Names are word characters only.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Parameter declares a substitutable value a template accepts.
type Parameter struct {
	// Name is the placeholder name used as {{name}}.
	Name string `json:"name" yaml:"name"`

	// Description explains the parameter to operators.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Required marks parameters without a usable default.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Default is substituted when the caller omits the parameter.
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// Template is a parameterized policy blueprint.
type Template struct {
	// Name identifies the template.
	Name string `json:"name"`

	// Description explains what the instantiated policy does.
	Description string `json:"description,omitempty"`

	// Parameters lists the accepted placeholders.
	Parameters []Parameter `json:"parameters,omitempty"`

	// body is the policy document as YAML text, placeholders intact.
	body string
}

// templateFile is the on-disk YAML shape.
type templateFile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Parameters  []Parameter `yaml:"parameters"`
	Policy      yaml.Node   `yaml:"policy"`
}

// Parse reads a template from YAML source.
func Parse(data []byte) (*Template, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if tf.Name == "" {
		return nil, fmt.Errorf("parsing template: name is required")
	}
	if tf.Policy.IsZero() {
		return nil, fmt.Errorf("parsing template %s: policy section is required", tf.Name)
	}

	body, err := yaml.Marshal(&tf.Policy)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", tf.Name, err)
	}

	return &Template{
		Name:        tf.Name,
		Description: tf.Description,
		Parameters:  tf.Parameters,
		body:        string(body),
	}, nil
}

// Instantiate substitutes parameter values into the policy document
// and returns the validated policy. Missing required parameters,
// values for undeclared parameters, and unresolved placeholders are
// all rejected.
func (t *Template) Instantiate(params map[string]interface{}) (*policy.Policy, error) {
	perr := &ParameterError{Template: t.Name}

	declared := make(map[string]bool, len(t.Parameters))
	values := make(map[string]string, len(t.Parameters))
	for _, p := range t.Parameters {
		declared[p.Name] = true
		if p.Default != nil {
			values[p.Name] = fmt.Sprintf("%v", p.Default)
		}
	}
	for name, v := range params {
		if !declared[name] {
			perr.Unknown = append(perr.Unknown, name)
			continue
		}
		values[name] = fmt.Sprintf("%v", v)
	}
	for _, p := range t.Parameters {
		if p.Required {
			if _, ok := values[p.Name]; !ok {
				perr.Missing = append(perr.Missing, p.Name)
			}
		}
	}
	sort.Strings(perr.Missing)
	sort.Strings(perr.Unknown)
	if len(perr.Missing) > 0 || len(perr.Unknown) > 0 {
		return nil, perr
	}

	unresolved := make(map[string]bool)
	rendered := placeholderPattern.ReplaceAllStringFunc(t.body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := values[name]
		if !ok {
			unresolved[name] = true
			return match
		}
		return v
	})
	if len(unresolved) > 0 {
		for name := range unresolved {
			perr.Unresolved = append(perr.Unresolved, name)
		}
		sort.Strings(perr.Unresolved)
		return nil, perr
	}

	var p policy.Policy
	if err := yaml.Unmarshal([]byte(rendered), &p); err != nil {
		return nil, fmt.Errorf("template %s: rendered policy is not valid YAML: %w", t.Name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
