package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/plotapi"
)

// API is the subset of the Q&A API the controller needs.
type API interface {
	BaseURL() string
	Menu(ctx context.Context) ([]string, error)
	Questions(ctx context.Context, subject string) ([]string, error)
	Answer(ctx context.Context, question string) (string, error)
}

// Controller runs the menu → questions → answer → menu navigation. It holds no
// per-chat state: the session goes in and comes back out of Enter.
type Controller struct {
	api API
}

func NewController(api API) *Controller {
	return &Controller{api: api}
}

// Enter runs stage st and every transition it triggers, returning the session
// as it stands once the flow is idle again. API failures are reported to the
// user through r and never returned; only renderer failures are.
func (c *Controller) Enter(ctx context.Context, r Renderer, sess Session, st Stage) (Session, error) {
	next := &st
	for next != nil {
		var err error
		cur := *next
		switch cur.Kind {
		case StageMainMenu:
			sess, next, err = c.mainMenu(ctx, r, sess)
		case StageQuestions:
			sess, next, err = c.questions(ctx, r, sess, cur.Subject)
		case StageAnswer:
			sess, next, err = c.answer(ctx, r, sess, cur.Question)
		default:
			return sess, fmt.Errorf("flow: unknown stage %s", cur)
		}
		if err != nil {
			return sess, fmt.Errorf("flow: %s: %w", cur, err)
		}
	}
	return sess, nil
}

func (c *Controller) mainMenu(ctx context.Context, r Renderer, sess Session) (Session, *Stage, error) {
	sess.Subject = ""

	subjects, err := c.api.Menu(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("flow: loading menu failed")
		url := c.api.BaseURL() + "/menu"
		var apiErr *plotapi.Error
		if errors.As(err, &apiErr) {
			url = apiErr.URL
		}
		return sess, nil, r.AppendMessage(ctx, RoleBot, menuErrorText(url))
	}

	menu := Menu{Title: MenuTitle, Options: make([]Option, 0, len(subjects))}
	for _, s := range subjects {
		menu.Options = append(menu.Options, newOption(s, Questions(s)))
	}
	return sess, nil, r.RenderOptions(ctx, menu)
}

func (c *Controller) questions(ctx context.Context, r Renderer, sess Session, subject string) (Session, *Stage, error) {
	sess.Subject = subject

	questions, err := c.api.Questions(ctx, subject)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("flow: loading questions failed")
		if err := r.AppendMessage(ctx, RoleBot, questionsErrorText(reason(err))); err != nil {
			return sess, nil, err
		}
		return sess, stagePtr(MainMenu()), nil
	}

	menu := Menu{Title: questionsTitle(subject), Options: make([]Option, 0, len(questions)+1)}
	for _, q := range questions {
		menu.Options = append(menu.Options, newOption(q, Answer(subject, q)))
	}
	menu.Options = append(menu.Options, backOption())
	return sess, nil, r.RenderOptions(ctx, menu)
}

func (c *Controller) answer(ctx context.Context, r Renderer, sess Session, question string) (Session, *Stage, error) {
	if err := r.AppendMessage(ctx, RoleBot, questionMarkup(question)); err != nil {
		return sess, nil, err
	}

	answer, err := c.api.Answer(ctx, question)
	if err != nil {
		log.Warn().Err(err).Str("question", question).Msg("flow: fetching answer failed")
		if err := r.AppendMessage(ctx, RoleBot, answerErrorText(reason(err))); err != nil {
			return sess, nil, err
		}
		return sess, stagePtr(MainMenu()), nil
	}

	if err := r.AppendMessage(ctx, RoleBot, answerMarkup(answer)); err != nil {
		return sess, nil, err
	}
	if err := r.AppendMessage(ctx, RoleBot, CompletionText); err != nil {
		return sess, nil, err
	}
	return sess, stagePtr(MainMenu()), nil
}

// reason turns a failed call into the text shown after "Error ...: ".
func reason(err error) string {
	var apiErr *plotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == plotapi.KindTransport {
			return "Could not connect to API"
		}
		return apiErr.Reason()
	}
	return err.Error()
}

func stagePtr(s Stage) *Stage { return &s }
