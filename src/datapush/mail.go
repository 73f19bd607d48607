// Package datapush 将快照推送给订阅者
package datapush

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"
)

// 常量定义
const (
	RetryTimes    = 5
	RetryInterval = 2 * time.Second
	defaultPort   = "465" // SSL 端口
)

type sendFunc func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error

// Mailer 通过 SMTP(显式 TLS)发送带附件的邮件
type Mailer struct {
	server   string
	username string
	password string
	subject  string
	to       []string

	send     sendFunc
	times    int
	interval time.Duration
}

// NewMailer 创建邮件推送
func NewMailer(server, username, password, subject string, to []string) *Mailer {
	return &Mailer{
		server:   server,
		username: username,
		password: password,
		subject:  subject,
		to:       to,
		send: func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error {
			return e.SendWithTLS(addr, a, t)
		},
		times:    RetryTimes,
		interval: RetryInterval,
	}
}

// SetRetry 修改重试次数和间隔
func (m *Mailer) SetRetry(times int, interval time.Duration) {
	if times < 1 {
		times = 1
	}
	m.times, m.interval = times, interval
}

// Send 发送 attachment，失败时按间隔重试
func (m *Mailer) Send(ctx context.Context, attachment, text string) error {
	if len(m.to) == 0 {
		return errors.New("未配置收件人")
	}
	if _, err := os.Stat(attachment); err != nil {
		return fmt.Errorf("附件文件不存在: %w", err)
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("AirDash <%s>", m.username)
	e.To = m.to
	e.Subject = m.subject
	e.Text = []byte(text)
	if _, err := e.AttachFile(attachment); err != nil {
		return fmt.Errorf("附件添加失败: %w", err)
	}

	addr := smtpAddr(m.server)
	host := strings.Split(addr, ":")[0]
	auth := smtp.PlainAuth("", m.username, m.password, host)

	return retry(ctx, func() error {
		if err := m.send(e, addr, auth, &tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
		}
		return nil
	}, m.times, m.interval)
}

// smtpAddr 确保服务器地址包含端口
func smtpAddr(server string) string {
	if !strings.Contains(server, ":") {
		return server + ":" + defaultPort
	}
	return server
}

// 重试函数，ctx 结束时提前返回
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return fmt.Errorf("重试中断: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
