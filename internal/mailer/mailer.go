// Package mailer 通过 SMTP 发送模板邮件
package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed templates
var templateFS embed.FS

// Mailer 邮件发送接口，测试里用桩实现替换
type Mailer interface {
	Send(recipient, templateFile string, data any) error
}

// SMTPMailer 基于 go-mail 的实现
type SMTPMailer struct {
	dialer *mail.Dialer
	sender string
}

// New 创建 SMTP 发送器
func New(host string, port int, username, password, sender string) *SMTPMailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return &SMTPMailer{
		dialer: dialer,
		sender: sender,
	}
}

// Send 渲染模板中的 subject、plainBody、htmlBody 三段并发送，失败时重试三次
func (m *SMTPMailer) Send(recipient, templateFile string, data any) error {
	msg, err := Render(templateFile, data)
	if err != nil {
		return err
	}

	message := mail.NewMessage()
	message.SetHeader("To", recipient)
	message.SetHeader("From", m.sender)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.PlainBody)
	message.AddAlternative("text/html", msg.HTMLBody)

	for i := 1; i <= 3; i++ {
		err = m.dialer.DialAndSend(message)
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("发送邮件失败: %w", err)
}

// Message 渲染后的邮件内容
type Message struct {
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Render 渲染邮件模板
func Render(templateFile string, data any) (*Message, error) {
	tmpl, err := template.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return nil, fmt.Errorf("解析邮件模板失败: %w", err)
	}

	var msg Message
	for name, dst := range map[string]*string{
		"subject":   &msg.Subject,
		"plainBody": &msg.PlainBody,
		"htmlBody":  &msg.HTMLBody,
	} {
		buf := new(bytes.Buffer)
		if err := tmpl.ExecuteTemplate(buf, name, data); err != nil {
			return nil, fmt.Errorf("渲染 %s 失败: %w", name, err)
		}
		*dst = buf.String()
	}
	return &msg, nil
}
