package domain

// QuestionLanguage selects which side of a bilingual resource is asked first.
type QuestionLanguage string

// Possible question language values
const (
	QuestionLanguagePrimary   QuestionLanguage = "primary"
	QuestionLanguageSecondary QuestionLanguage = "secondary"
)

// Validate checks that the language is one of the known values.
func (l QuestionLanguage) Validate() error {
	switch l {
	case QuestionLanguagePrimary, QuestionLanguageSecondary:
		return nil
	default:
		return NewValidationError("question_language", "must be one of primary, secondary", nil)
	}
}

// ExecutionConfig drives how a practice session is presented.
type ExecutionConfig struct {
	QuestionLanguage QuestionLanguage `json:"question_language"`
	AutoPlayQuestion bool             `json:"auto_play_question"`
	AutoPlayAnswer   bool             `json:"auto_play_answer"`
	AutoAdvance      bool             `json:"auto_advance"`
	LoopMode         bool             `json:"loop_mode"`
	Shuffle          bool             `json:"shuffle"`
}

// DefaultExecutionConfig returns the configuration applied underneath the
// first patch of an execution.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{QuestionLanguage: QuestionLanguagePrimary}
}

// Validate checks the configuration values.
func (c ExecutionConfig) Validate() error {
	return c.QuestionLanguage.Validate()
}

// ConfigPatch is a partial configuration; nil fields leave the base untouched.
type ConfigPatch struct {
	QuestionLanguage *QuestionLanguage `json:"question_language,omitempty"`
	AutoPlayQuestion *bool             `json:"auto_play_question,omitempty"`
	AutoPlayAnswer   *bool             `json:"auto_play_answer,omitempty"`
	AutoAdvance      *bool             `json:"auto_advance,omitempty"`
	LoopMode         *bool             `json:"loop_mode,omitempty"`
	Shuffle          *bool             `json:"shuffle,omitempty"`
}

// Apply merges the patch onto base and returns the result.
func (p ConfigPatch) Apply(base ExecutionConfig) ExecutionConfig {
	merged := base
	if p.QuestionLanguage != nil {
		merged.QuestionLanguage = *p.QuestionLanguage
	}
	if p.AutoPlayQuestion != nil {
		merged.AutoPlayQuestion = *p.AutoPlayQuestion
	}
	if p.AutoPlayAnswer != nil {
		merged.AutoPlayAnswer = *p.AutoPlayAnswer
	}
	if p.AutoAdvance != nil {
		merged.AutoAdvance = *p.AutoAdvance
	}
	if p.LoopMode != nil {
		merged.LoopMode = *p.LoopMode
	}
	if p.Shuffle != nil {
		merged.Shuffle = *p.Shuffle
	}
	return merged
}
