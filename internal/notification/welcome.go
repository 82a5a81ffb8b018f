package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// WelcomeData is bound to the welcome templates.
type WelcomeData struct {
	Username    string
	FirstName   string
	Email       string
	FrontendURL string
}

// WelcomeRenderer turns a new account into its welcome Message.
type WelcomeRenderer struct {
	subject     *texttemplate.Template
	text        *texttemplate.Template
	html        *htmltemplate.Template
	frontendURL string
}

func NewWelcomeRenderer(frontendURL string) (*WelcomeRenderer, error) {
	subject, err := texttemplate.ParseFS(templateFS, "templates/welcome_subject.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse welcome subject template: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/welcome_body.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse welcome text template: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/welcome_body.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse welcome html template: %w", err)
	}

	return &WelcomeRenderer{subject: subject, text: text, html: html, frontendURL: frontendURL}, nil
}

func (r *WelcomeRenderer) Render(username, firstName, email string) (Message, error) {
	data := WelcomeData{
		Username:    username,
		FirstName:   firstName,
		Email:       email,
		FrontendURL: r.frontendURL,
	}

	var subject, text, html bytes.Buffer
	if err := r.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome subject: %w", err)
	}
	if err := r.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome text body: %w", err)
	}
	if err := r.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome html body: %w", err)
	}

	return Message{
		To:       email,
		Subject:  strings.TrimSpace(subject.String()),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
