package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidParameters marks a parameter file that fails validation.
var ErrInvalidParameters = errors.New("invalid parameters")

// Parameterization is the content of a delta-kusto parameter file.
type Parameterization struct {
	FailIfDataLoss bool                            `yaml:"failIfDataLoss"`
	Jobs           map[string]*JobParameterization `yaml:"jobs" validate:"required,min=1,dive,required"`
	TokenProvider  *TokenProviderParameterization  `yaml:"tokenProvider" validate:"omitempty"`
}

// JobParameterization describes one delta computation. An absent current
// source stands for an empty database.
type JobParameterization struct {
	Priority int                     `yaml:"priority"`
	Current  *SourceParameterization `yaml:"current" validate:"omitempty"`
	Target   *SourceParameterization `yaml:"target" validate:"required"`
	Action   *ActionParameterization `yaml:"action" validate:"required"`
}

// SourceParameterization is either a live database or a list of scripts.
type SourceParameterization struct {
	Adx     *AdxSourceParameterization   `yaml:"adx" validate:"omitempty"`
	Scripts []SourceFileParameterization `yaml:"scripts" validate:"omitempty,dive"`
}

type AdxSourceParameterization struct {
	ClusterURI string `yaml:"clusterUri" validate:"required,url"`
	Database   string `yaml:"database" validate:"required"`
}

// SourceFileParameterization points at one script file or a folder of
// scripts filtered by extension.
type SourceFileParameterization struct {
	FilePath   string   `yaml:"filePath"`
	FolderPath string   `yaml:"folderPath"`
	Extensions []string `yaml:"extensions"`
}

// ActionParameterization lists where a delta goes; several sinks may be set.
type ActionParameterization struct {
	FilePath      string                      `yaml:"filePath"`
	FolderPath    string                      `yaml:"folderPath"`
	PushToConsole bool                        `yaml:"pushToConsole"`
	PushToCurrent bool                        `yaml:"pushToCurrent"`
	Blob          *BlobActionParameterization `yaml:"blob" validate:"omitempty"`
}

type BlobActionParameterization struct {
	ServiceURL string `yaml:"serviceUrl" validate:"required,url"`
	Container  string `yaml:"container" validate:"required"`
	Path       string `yaml:"path" validate:"required"`
}

// TokenProviderParameterization is either a service principal login or a
// set of pre-acquired tokens.
type TokenProviderParameterization struct {
	Login  *ServicePrincipalLoginParameterization `yaml:"login" validate:"omitempty"`
	Tokens map[string]TokenParameterization       `yaml:"tokens" validate:"omitempty,dive"`
}

type ServicePrincipalLoginParameterization struct {
	TenantID string `yaml:"tenantId" validate:"required"`
	ClientID string `yaml:"clientId" validate:"required"`
	Secret   string `yaml:"secret" validate:"required"`
}

type TokenParameterization struct {
	ClusterURI string `yaml:"clusterUri" validate:"required,url"`
	Token      string `yaml:"token" validate:"required"`
}

// NamedJob pairs a job with its name.
type NamedJob struct {
	Name string
	*JobParameterization
}

// ParseParameters decodes a YAML parameter file, applies "path=value"
// overrides and validates the result.
func ParseParameters(data []byte, overrides []string) (*Parameterization, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	for _, override := range overrides {
		if err := applyOverride(tree, override); err != nil {
			return nil, err
		}
	}
	normalized, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	var params Parameterization
	if err := yaml.Unmarshal(normalized, &params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// applyOverride sets a dotted path such as "jobs.main.action.filePath=out.kql".
// The value is read as a YAML scalar so booleans and numbers keep their type.
func applyOverride(tree map[string]any, override string) error {
	path, raw, ok := strings.Cut(override, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return fmt.Errorf("%w: override %q should look like path=value", ErrInvalidParameters, override)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	segments := strings.Split(path, ".")
	node := tree
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("%w: override %q has an empty path segment", ErrInvalidParameters, override)
		}
		if i == len(segments)-1 {
			node[segment] = value
			return nil
		}
		child, ok := node[segment].(map[string]any)
		if !ok {
			if existing, present := node[segment]; present && existing != nil {
				return fmt.Errorf("%w: override %q: %s is not an object", ErrInvalidParameters, override, strings.Join(segments[:i+1], "."))
			}
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	return nil
}

var parameterValidator = validator.New()

// Validate runs struct tag validation and the cross-field rules tags can't
// express.
func (p *Parameterization) Validate() error {
	if err := parameterValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, describeValidation(err))
	}
	if p.TokenProvider != nil {
		hasLogin := p.TokenProvider.Login != nil
		hasTokens := len(p.TokenProvider.Tokens) > 0
		if hasLogin == hasTokens {
			return fmt.Errorf("%w: tokenProvider needs exactly one of login or tokens", ErrInvalidParameters)
		}
	}
	for _, job := range p.SortedJobs() {
		if err := job.validate(p.TokenProvider != nil); err != nil {
			return fmt.Errorf("%w: job %q: %s", ErrInvalidParameters, job.Name, err)
		}
	}
	return nil
}

func (j NamedJob) validate(hasTokenProvider bool) error {
	if j.Current != nil {
		if err := j.Current.validate("current", hasTokenProvider); err != nil {
			return err
		}
	}
	if err := j.Target.validate("target", hasTokenProvider); err != nil {
		return err
	}
	a := j.Action
	if a.FilePath == "" && a.FolderPath == "" && !a.PushToConsole && !a.PushToCurrent && a.Blob == nil {
		return errors.New("action needs at least one of filePath, folderPath, pushToConsole, pushToCurrent or blob")
	}
	if a.FilePath != "" && a.FolderPath != "" {
		return errors.New("action can't set both filePath and folderPath")
	}
	if a.PushToCurrent && (j.Current == nil || j.Current.Adx == nil) {
		return errors.New("pushToCurrent requires an adx current source")
	}
	return nil
}

func (s *SourceParameterization) validate(name string, hasTokenProvider bool) error {
	hasAdx := s.Adx != nil
	hasScripts := len(s.Scripts) > 0
	if hasAdx == hasScripts {
		return fmt.Errorf("%s needs exactly one of adx or scripts", name)
	}
	if hasAdx && !hasTokenProvider {
		return fmt.Errorf("%s uses adx but no tokenProvider is configured", name)
	}
	for i, script := range s.Scripts {
		if (script.FilePath == "") == (script.FolderPath == "") {
			return fmt.Errorf("%s script %d needs exactly one of filePath or folderPath", name, i)
		}
		if script.FilePath != "" && len(script.Extensions) > 0 {
			return fmt.Errorf("%s script %d: extensions only apply to folderPath", name, i)
		}
	}
	return nil
}

// SortedJobs returns the jobs ordered by priority, then name.
func (p *Parameterization) SortedJobs() []NamedJob {
	jobs := make([]NamedJob, 0, len(p.Jobs))
	for name, job := range p.Jobs {
		if job == nil {
			continue
		}
		jobs = append(jobs, NamedJob{Name: name, JobParameterization: job})
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority < jobs[j].Priority
		}
		return jobs[i].Name < jobs[j].Name
	})
	return jobs
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
