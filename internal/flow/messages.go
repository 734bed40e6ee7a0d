package flow

import (
	"fmt"
	"html"
)

const (
	MenuTitle       = "Choose an Option:"
	BackLabel       = "⬅️ Go Back to Main Menu"
	CompletionText  = "✅ Got it! Ready for your next question."
	questionsTitleF = "Questions for: %s"
)

func questionsTitle(subject string) string {
	return fmt.Sprintf(questionsTitleF, subject)
}

func questionMarkup(question string) string {
	return "<strong>Question:</strong> " + html.EscapeString(question)
}

func answerMarkup(answer string) string {
	return "<strong>Answer:</strong> " + html.EscapeString(answer)
}

func menuErrorText(url string) string {
	return "Error loading menu: Could not connect to API at " + html.EscapeString(url)
}

func questionsErrorText(reason string) string {
	return "Error loading questions: " + html.EscapeString(reason)
}

func answerErrorText(reason string) string {
	return "Error fetching answer: " + html.EscapeString(reason)
}
