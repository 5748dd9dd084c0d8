package email

import (
	_ "embed"
	"html/template"
	"regexp"
	"strings"
)

var (
	//go:embed notification.html
	notificationHTML     string
	notificationTemplate = template.Must(template.New("notification.html").Parse(notificationHTML))

	trailingURL = regexp.MustCompile(`\s-\s(https?://\S+)$`)
)

const subjectMaxLen = 78

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

// NotificationFormat renders a pipeline message as an email. A trailing
// " - <url>" is split off and rendered as a link.
type NotificationFormat struct {
	Message string
}

func (ef *NotificationFormat) Subject() string {
	subject := "Tickerwatch: " + ef.Text()
	if r := []rune(subject); len(r) > subjectMaxLen {
		subject = string(r[:subjectMaxLen-1]) + "…"
	}
	return subject
}

func (ef *NotificationFormat) Text() string {
	return strings.TrimSpace(trailingURL.ReplaceAllString(ef.Message, ""))
}

func (ef *NotificationFormat) Link() string {
	m := trailingURL.FindStringSubmatch(ef.Message)
	if m == nil {
		return ""
	}
	return m[1]
}

func (ef *NotificationFormat) Body() string {
	return mustFillTemplate(notificationTemplate, ef)
}
