package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// NotifyConfig 失败通知邮件配置
type NotifyConfig struct {
	SMTPHost string   `yaml:"smtp-host"`
	SMTPPort int      `yaml:"smtp-port" default:"25"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" default:"harvester@localhost"`
	To       []string `yaml:"to"`
}

// Notifier reports failed runs
// Notifier 发送失败运行的通知
type Notifier interface {
	NotifyFailure(cfg *domain.HarvesterConfig, run *domain.HarvestRun) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyFailure(*domain.HarvesterConfig, *domain.HarvestRun) error { return nil }

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// mailNotifier 通过 SMTP 发送失败通知
type mailNotifier struct {
	conf   NotifyConfig
	dialer mailSender
	logger *zap.Logger
}

// NewNotifier 创建通知器，未配置 SMTP 主机时返回空实现
func NewNotifier(conf NotifyConfig, logger *zap.Logger) Notifier {
	if conf.SMTPHost == "" {
		return nopNotifier{}
	}
	if conf.SMTPPort == 0 {
		conf.SMTPPort = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mailNotifier{
		conf:   conf,
		dialer: gomail.NewDialer(conf.SMTPHost, conf.SMTPPort, conf.Username, conf.Password),
		logger: logger,
	}
}

// recipients merges the configured addresses with the transfile's m= address
func (n *mailNotifier) recipients(cfg *domain.HarvesterConfig) []string {
	seen := make(map[string]struct{})
	var to []string
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		to = append(to, addr)
	}
	for _, addr := range n.conf.To {
		add(addr)
	}
	add(harvest.ParseTransfile(cfg.Transfile)["m"])
	return to
}

func (n *mailNotifier) NotifyFailure(cfg *domain.HarvesterConfig, run *domain.HarvestRun) error {
	to := n.recipients(cfg)
	if len(to) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.conf.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", fmt.Sprintf("Harvest of %s (%s #%d) failed", cfg.Name, cfg.Protocol, cfg.ID))
	m.SetBody("text/plain", fmt.Sprintf(
		"Run:      %s\nTrigger:  %s\nStarted:  %s\nFinished: %s\nFiles:    %d/%d\nSeqno:    %d -> %d\n\n%s\n",
		run.RunID, run.Trigger,
		run.StartedAt.Format(time.RFC3339), run.FinishedAt.Format(time.RFC3339),
		run.FilesDone, run.FilesTotal,
		run.SeqnoBefore, run.SeqnoAfter,
		run.Message))

	if err := n.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "send failure mail")
	}
	n.logger.Info("failure mail sent", zap.Int64(logger.FieldConfigID, cfg.ID), zap.Strings("to", to))
	return nil
}
