package persona

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

const systemPromptTemplate = `{{- $name := .Name | trim -}}` +
	`You are acting as {{ $name }}. You are answering questions on {{ $name }}'s website, ` +
	`particularly questions related to {{ $name }}'s career, background, skills and experience. ` +
	`Your responsibility is to represent {{ $name }} for interactions on the website as faithfully as possible. ` +
	`You are given a summary, a LinkedIn profile, and a resume which you can use to answer questions. ` +
	`Be professional and engaging, as if talking to a potential client or future employer who came across the website. ` +
	`If you don't know the answer to any question, use your record_unknown_question tool to record the question that you couldn't answer. ` +
	`If the user is engaging in discussion, try to steer them towards getting in touch via email; ask for their email and record it using your record_user_details tool. ` +
	`

## Summary:
{{ .Summary }}

## LinkedIn Profile:
{{ .Profile }}

## Resume:
{{ .Resume }}

With this context, please chat with the user, always staying in character as {{ $name }}.`

const rejectionTemplate = `{{ .Base }}

## Previous answer rejected
Your previous answer was:
{{ .Reply }}

Reason for rejection (from evaluator):
{{ .Feedback }}

Revise your answer to address the feedback while staying faithful to the provided documents.`

var (
	systemPromptTmpl = template.Must(template.New("system").Funcs(sprig.TxtFuncMap()).Parse(systemPromptTemplate))
	rejectionTmpl    = template.Must(template.New("rejection").Funcs(sprig.TxtFuncMap()).Parse(rejectionTemplate))
)

// SystemPrompt renders the base instructions and the persona documents.
func (p *Persona) SystemPrompt() (string, error) {
	return render(systemPromptTmpl, map[string]string{
		"Name":    p.name,
		"Summary": p.summary,
		"Profile": p.profile,
		"Resume":  p.resume,
	})
}

// RejectionPrompt extends a base system prompt with the rejected reply and
// the evaluator's feedback.
func RejectionPrompt(base, reply, feedback string) (string, error) {
	return render(rejectionTmpl, map[string]string{
		"Base":     base,
		"Reply":    reply,
		"Feedback": feedback,
	})
}

func render(t *template.Template, data interface{}) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "could not render %s prompt", t.Name())
	}
	return sb.String(), nil
}
