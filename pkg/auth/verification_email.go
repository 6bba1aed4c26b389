package auth

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const (
	subjectVerify = "Verify your account"
	subjectResend = "Resend: Verify your account"
)

var verificationEmailTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>{{if .Resend}}Hi{{else}}Welcome{{end}}, {{.Name}}</h2>
  <p>{{if .Resend}}Here is a new verification link for your account.{{else}}Thanks for signing up. Please confirm your email address.{{end}}</p>
  <p><a href="{{.Link}}">Verify Email</a></p>
  <p>This link expires in {{.ExpiresIn}}.</p>
  <p>If you did not create an account, you can ignore this message.</p>
</body>
</html>`))

type verificationEmail struct {
	Name      string
	Link      string
	ExpiresIn string
	Resend    bool
}

func renderVerificationEmail(data verificationEmail) (string, error) {
	var buf bytes.Buffer
	if err := verificationEmailTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}

// humanDuration formats whole hours or minutes, e.g. "24 hours".
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
