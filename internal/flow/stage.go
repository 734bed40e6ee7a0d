package flow

import "fmt"

// StageKind tags the three navigation states.
type StageKind int

const (
	StageMainMenu StageKind = iota
	StageQuestions
	StageAnswer
)

func (k StageKind) String() string {
	switch k {
	case StageMainMenu:
		return "main_menu"
	case StageQuestions:
		return "questions"
	case StageAnswer:
		return "answer"
	default:
		return fmt.Sprintf("stage(%d)", int(k))
	}
}

// Stage is a navigation target. Subject is set for Questions and Answer,
// Question only for Answer.
type Stage struct {
	Kind     StageKind `json:"kind"`
	Subject  string    `json:"subject,omitempty"`
	Question string    `json:"question,omitempty"`
}

func MainMenu() Stage { return Stage{Kind: StageMainMenu} }

func Questions(subject string) Stage {
	return Stage{Kind: StageQuestions, Subject: subject}
}

func Answer(subject, question string) Stage {
	return Stage{Kind: StageAnswer, Subject: subject, Question: question}
}

func (s Stage) String() string {
	switch s.Kind {
	case StageQuestions:
		return fmt.Sprintf("%s(%q)", s.Kind, s.Subject)
	case StageAnswer:
		return fmt.Sprintf("%s(%q, %q)", s.Kind, s.Subject, s.Question)
	default:
		return s.Kind.String()
	}
}

// Session is the only state carried between stages. An empty Subject means no
// subject is selected.
type Session struct {
	Subject string `json:"subject,omitempty"`
}
