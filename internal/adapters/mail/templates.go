package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind names one of the account mail templates.
type Kind string

const (
	KindActivation    Kind = "activation"
	KindPasswordReset Kind = "password_reset"
)

var subjects = map[Kind]string{
	KindActivation:    "Account activation",
	KindPasswordReset: "Password reset",
}

// Message is a rendered mail ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Kind    Kind
}

type templateData struct {
	Login         string
	DisplayName   string
	LangKey       string
	ActivationURL string
	ResetURL      string
}

// Renderer turns a user snapshot into a Message using the embedded templates.
type Renderer struct {
	baseURL   string
	templates map[Kind]*template.Template
}

func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		templates: make(map[Kind]*template.Template, len(subjects)),
	}
	for kind := range subjects {
		tpl, err := template.ParseFS(templateFS, "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", kind, err)
		}
		r.templates[kind] = tpl
	}
	return r, nil
}

func (r *Renderer) Render(kind Kind, user domain.User) (Message, error) {
	tpl, ok := r.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", kind)
	}
	if user.Email == "" {
		return Message{}, fmt.Errorf("user %q has no email address", user.Login)
	}

	lang := user.LangKey
	if lang == "" {
		lang = domain.DefaultLangKey
	}
	data := templateData{
		Login:         user.Login,
		DisplayName:   displayName(user),
		LangKey:       lang,
		ActivationURL: r.link("/activate", user.ActivationKey),
		ResetURL:      r.link("/reset/finish", user.ResetKey),
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render mail template %s: %w", kind, err)
	}
	return Message{
		To:      user.Email,
		Subject: subjects[kind],
		HTML:    buf.String(),
		Kind:    kind,
	}, nil
}

func (r *Renderer) link(path, key string) string {
	return r.baseURL + "/#" + path + "?key=" + url.QueryEscape(key)
}

func displayName(u domain.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Login
	}
	return name
}
