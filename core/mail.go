package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/darasa/fs"
)

var (
	textTemplates   *texttmpl.Template
	htmlTemplates   *htmltmpl.Template
	frontendBaseURL string
	tmplInit        sync.Once
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses all embedded email templates once.
func ParseEmailTemplates(conf *Config, logger Logger) {
	tmplInit.Do(func() {
		frontendBaseURL = conf.FrontendBaseURL

		var err error
		if textTemplates, err = texttmpl.ParseFS(appfs.FS, "templates/email/*.txt"); err != nil {
			logger.Fatal(fmt.Sprintf("parsing text email templates: %v", err), err)
		}
		if htmlTemplates, err = htmltmpl.ParseFS(appfs.FS, "templates/email/*.html"); err != nil {
			logger.Fatal(fmt.Sprintf("parsing html email templates: %v", err), err)
		}
	})
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render resolves TextContent and HTMLContent from either BodyStr or the
// named template pair.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	var txt bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&txt, m.TemplateName+".txt", m.getContextData()); err != nil {
		return errors.Wrap(err, "rendering text template "+m.TemplateName)
	}
	m.TextContent = txt.String()

	if tmpl := htmlTemplates.Lookup(m.TemplateName + ".html"); tmpl != nil {
		var html bytes.Buffer
		if err := tmpl.Execute(&html, m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering html template "+m.TemplateName)
		}
		m.HTMLContent = html.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return (len(m.To) + len(m.Cc) + len(m.Bcc)) > 0
}

func (m *EmailMessage) HasContent() bool {
	return strings.TrimSpace(m.TextContent) != "" || strings.TrimSpace(m.HTMLContent) != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}
