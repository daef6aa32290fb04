package email

import (
	"errors"

	"gopkg.in/gomail.v2"
)

var ErrDisabled = errors.New("email is disabled")

func SendHtml(to []string, subject string, htmlContent string) error {
	if !globalConfig.Enabled {
		return ErrDisabled
	}
	if len(to) == 0 {
		return nil
	}

	msg := gomail.NewMessage()

	from := globalConfig.SMTP.Identity
	if len(from) == 0 {
		from = globalConfig.SMTP.UserName
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)

	msg.SetBody("text/html", htmlContent)

	dialer := gomail.NewDialer(
		globalConfig.SMTP.Host,
		globalConfig.SMTP.Port,
		globalConfig.SMTP.UserName,
		globalConfig.SMTP.Password)

	return dialer.DialAndSend(msg)
}
