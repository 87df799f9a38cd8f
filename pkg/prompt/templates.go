package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	diagnosisPlaceholder = "{{diagnosis}}"
	questionPlaceholder  = "{{question}}"
)

// RefusalText is what the model must answer when an upload is not a medical
// image.
const RefusalText = "This does not look like a medical image. Please upload a clear photo or scan of the affected area."

const defaultInitialTemplate = `You are an experienced medical imaging assistant. Analyze the attached image and answer using exactly the structure below.

1. Relevance check: if the image is not a medical or clinical image, reply only with "` + RefusalText + `" and nothing else.
2. Key Findings: list the visible findings as short bullet points.
3. Diagnostic Assessment: begin with one line in the form "Primary Diagnosis: <condition> (<confidence>% confidence)". Then list up to two other possibilities as bullets starting with "Alternative:".
4. Patient-Friendly Explanation: explain the assessment in plain language in three to five sentences.

Be concise and avoid jargon where a simpler word exists.`

const defaultFollowUpTemplate = `Earlier you analyzed the attached medical image. Your assessment was: ` + diagnosisPlaceholder + `.

The patient now asks: "` + questionPlaceholder + `"

Answer the question directly in a few sentences, building on that assessment. Do not repeat the full analysis and do not add disclaimers or refuse to answer.`

const (
	defaultQuestion             = "Describe the condition in this image."
	defaultDiagnosisPlaceholder = "the condition visible in the image (no assessment is available yet)"
)

// Templates are the instruction texts used to build model requests. Any
// field may be overridden from a YAML file.
type Templates struct {
	Initial              string `yaml:"initial"`
	FollowUp             string `yaml:"follow_up"`
	DefaultQuestion      string `yaml:"default_question"`
	DiagnosisPlaceholder string `yaml:"diagnosis_placeholder"`
}

func DefaultTemplates() Templates {
	return Templates{
		Initial:              defaultInitialTemplate,
		FollowUp:             defaultFollowUpTemplate,
		DefaultQuestion:      defaultQuestion,
		DiagnosisPlaceholder: defaultDiagnosisPlaceholder,
	}
}

// LoadTemplates reads overrides from a YAML file on top of the defaults.
// An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	tmpl := DefaultTemplates()
	if path == "" {
		return tmpl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("reading prompts file: %w", err)
	}

	var overrides Templates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Templates{}, fmt.Errorf("parsing prompts file: %w", err)
	}

	tmpl.merge(overrides)

	if err := tmpl.Validate(); err != nil {
		return Templates{}, fmt.Errorf("validating prompts file %s: %w", path, err)
	}

	return tmpl, nil
}

func (t *Templates) merge(o Templates) {
	if strings.TrimSpace(o.Initial) != "" {
		t.Initial = o.Initial
	}
	if strings.TrimSpace(o.FollowUp) != "" {
		t.FollowUp = o.FollowUp
	}
	if strings.TrimSpace(o.DefaultQuestion) != "" {
		t.DefaultQuestion = o.DefaultQuestion
	}
	if strings.TrimSpace(o.DiagnosisPlaceholder) != "" {
		t.DiagnosisPlaceholder = o.DiagnosisPlaceholder
	}
}

func (t Templates) Validate() error {
	var errs []error
	if !strings.Contains(t.Initial, RefusalText) {
		errs = append(errs, errors.New("initial template must contain the refusal text"))
	}
	if !strings.Contains(t.FollowUp, diagnosisPlaceholder) {
		errs = append(errs, fmt.Errorf("follow-up template must contain %s", diagnosisPlaceholder))
	}
	if !strings.Contains(t.FollowUp, questionPlaceholder) {
		errs = append(errs, fmt.Errorf("follow-up template must contain %s", questionPlaceholder))
	}
	if strings.TrimSpace(t.DefaultQuestion) == "" {
		errs = append(errs, errors.New("default question is empty"))
	}
	if strings.TrimSpace(t.DiagnosisPlaceholder) == "" {
		errs = append(errs, errors.New("diagnosis placeholder is empty"))
	}
	return errors.Join(errs...)
}
