package service

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func TestNewNotifier_Disabled(t *testing.T) {
	n := NewNotifier(NotifyConfig{}, nil)
	assert.IsType(t, nopNotifier{}, n)
	assert.NoError(t, n.NotifyFailure(ftpConfig(1), &domain.HarvestRun{}))
}

func TestMailNotifier_NotifyFailure(t *testing.T) {
	n := NewNotifier(NotifyConfig{
		SMTPHost: "smtp.example.org",
		From:     "harvester@example.org",
		To:       []string{"ops@example.org", "dev@example.org"},
	}, nil).(*mailNotifier)
	sender := &captureSender{}
	n.dialer = sender

	cfg := ftpConfig(7)
	cfg.Transfile = "b=databroendpr3,m=owner@example.org"
	run := &domain.HarvestRun{
		RunID:       "r-1",
		Trigger:     domain.TriggerSchedule,
		StartedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2024, 5, 1, 9, 0, 3, 0, time.UTC),
		SeqnoBefore: 4622,
		SeqnoAfter:  4623,
		Message:     "ftp list ftp.example.org: timeout",
	}
	require.NoError(t, n.NotifyFailure(cfg, run))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"ops@example.org", "dev@example.org", "owner@example.org"}, msg.GetHeader("To"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "ftp harvest")

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "4622 -> 4623")

	sender.err = errors.New("550 mailbox unavailable")
	assert.Error(t, n.NotifyFailure(cfg, run))
}

func TestMailNotifier_Recipients(t *testing.T) {
	n := &mailNotifier{conf: NotifyConfig{To: []string{"ops@example.org"}}}

	cfg := ftpConfig(1)
	cfg.Transfile = "b=x,m=ops@example.org"
	assert.Equal(t, []string{"ops@example.org"}, n.recipients(cfg), "duplicates are dropped")

	cfg.Transfile = "b=x"
	n.conf.To = nil
	assert.Empty(t, n.recipients(cfg))
}
