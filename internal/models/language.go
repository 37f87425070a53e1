package models

import "fmt"

// Language is a user interface language code.
type Language string

const (
	English Language = "en"
	Bengali Language = "bn"
	Hindi   Language = "hi"
)

// Name returns the human readable language name used in prompts.
func (l Language) Name() string {
	switch l {
	case Bengali:
		return "Bengali"
	case Hindi:
		return "Hindi"
	default:
		return "English"
	}
}

func (l Language) Valid() bool {
	switch l {
	case English, Bengali, Hindi:
		return true
	}
	return false
}

// ParseLanguage accepts en, bn or hi. An empty code means English.
func ParseLanguage(code string) (Language, error) {
	if code == "" {
		return English, nil
	}
	l := Language(code)
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	return l, nil
}
