package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

// Rendered is a fully prepared email body.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var profileUpdatedHTML = template.Must(template.New("profile_updated").Parse(`
<html>
  <body style="font-family: sans-serif; color: #333;">
    <h2>{{.Company}} account updated</h2>
    <p>Hi {{.Name}},</p>
    <p>Your account settings were updated on {{.Time}}. If this was you, no action is needed.</p>
    <p>If you did not make this change, reset your password right away{{if .SupportURL}} or contact <a href="{{.SupportURL}}">support</a>{{end}}.</p>
  </body>
</html>`))

var loginNotificationHTML = template.Must(template.New("login_notification").Parse(`
<html>
  <body style="font-family: sans-serif; color: #333;">
    <h2>New login to your {{.Company}} account</h2>
    <p>Hi {{.Name}},</p>
    <p>Your account was signed in on {{.Time}}.</p>
    <p>If this was not you, reset your password right away{{if .SupportURL}} or contact <a href="{{.SupportURL}}">support</a>{{end}}.</p>
  </body>
</html>`))

type templateData struct {
	Company    string
	SupportURL string
	Name       string
	Email      string
	Time       string
}

// Render produces the subject and bodies for a named template. data comes
// from the EmailJob; company and supportURL come from configuration.
func Render(name, company, supportURL string, data map[string]any) (Rendered, error) {
	td := templateData{
		Company:    company,
		SupportURL: supportURL,
		Name:       str(data, "Name"),
		Email:      str(data, "Email"),
		Time:       str(data, "Time"),
	}
	switch name {
	case "profile_updated":
		html, err := execute(profileUpdatedHTML, td)
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{
			Subject: "Your profile was updated successfully",
			Text:    fmt.Sprintf("Hi %s, your %s account settings were updated on %s.", td.Name, td.Company, td.Time),
			HTML:    html,
		}, nil
	case "login_notification":
		html, err := execute(loginNotificationHTML, td)
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{
			Subject: "New login to your account",
			Text:    fmt.Sprintf("Hi %s, your %s account was signed in on %s.", td.Name, td.Company, td.Time),
			HTML:    html,
		}, nil
	default:
		return Rendered{}, fmt.Errorf("unknown email template %q", name)
	}
}

func execute(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func str(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
