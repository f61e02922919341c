// Package mailbox retrieves unseen assignment emails over IMAP and feeds
// them to the pipeline.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
)

// Retriever polls one IMAP folder for unseen messages. Each poll fetches,
// parses, and marks messages seen; exactly-once processing is the outcome
// store's job, so a message seen twice across restarts is harmless.
type Retriever struct {
	cfg config.MailboxConfig
	log *logging.Logger
}

// NewRetriever validates the mailbox configuration.
func NewRetriever(cfg config.MailboxConfig, log *logging.Logger) (*Retriever, error) {
	if cfg.Address == "" {
		return nil, errors.New("mailbox address is empty")
	}
	if cfg.Username == "" {
		return nil, errors.New("mailbox username is empty")
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &Retriever{cfg: cfg, log: log.Named("mailbox")}, nil
}

// Run polls the folder until ctx is cancelled, sending parsed messages to
// out. Poll failures are logged and retried on the next tick.
func (r *Retriever) Run(ctx context.Context, out chan<- mail.RawMessage) error {
	interval := r.cfg.PollInterval.Duration()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msgs, err := r.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn(ctx, "mailbox poll failed", zap.Error(err))
		}
		for _, msg := range msgs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- msg:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll fetches all unseen messages from the folder and marks them seen.
func (r *Retriever) Poll(ctx context.Context) ([]mail.RawMessage, error) {
	client, cleanup, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := client.Select(r.cfg.Folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.cfg.Folder, err)
	}

	searchData, err := client.UIDSearch(&imapv2.SearchCriteria{
		NotFlag: []imapv2.Flag{imapv2.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imapv2.UIDSetNum(uids...)
	fetched, err := client.Fetch(uidSet, &imapv2.FetchOptions{
		Envelope:    true,
		BodySection: []*imapv2.FetchItemBodySection{{}},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	var messages []mail.RawMessage
	for _, buf := range fetched {
		raw := buf.FindBodySection(&imapv2.FetchItemBodySection{})
		received := time.Now().UTC()
		if buf.Envelope != nil && !buf.Envelope.Date.IsZero() {
			received = buf.Envelope.Date
		}
		messages = append(messages, r.buildMessage(ctx, buf.UID, buf.Envelope, raw, received))
	}

	if err := client.Store(uidSet, &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Flags:  []imapv2.Flag{imapv2.FlagSeen},
		Silent: true,
	}, nil).Close(); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	r.log.Info(ctx, "mailbox poll complete",
		zap.String("folder", r.cfg.Folder),
		zap.Int("messages", len(messages)),
	)
	return messages, nil
}

// buildMessage parses one fetched message. Malformed mail is never dropped:
// the poll marks everything seen, so a message the parser cannot read is
// forwarded as a bare body under a stable identifier and the pipeline
// records its terminal outcome.
func (r *Retriever) buildMessage(ctx context.Context, uid imapv2.UID, env *imapv2.Envelope, raw []byte, received time.Time) mail.RawMessage {
	var parseErr error
	if len(raw) > 0 {
		msg, err := mail.ParseRFC822(raw, received)
		if err == nil {
			return msg
		}
		parseErr = err
	} else {
		parseErr = errors.New("message has no body section")
	}

	var id, subject string
	if env != nil {
		id = env.MessageID
		subject = env.Subject
	}
	if id == "" {
		id = fmt.Sprintf("imap-%s-%d", r.cfg.Folder, uid)
	}

	r.log.Warn(ctx, "unparseable message forwarded as bare body",
		zap.Uint32("uid", uint32(uid)),
		zap.String("message_id", id),
		zap.Error(parseErr),
	)
	return mail.RawMessage{
		ID:         id,
		Subject:    subject,
		Body:       string(raw),
		ReceivedAt: received,
	}
}

func (r *Retriever) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	host, _, err := net.SplitHostPort(r.cfg.Address)
	if err != nil {
		host = r.cfg.Address
	}

	client, err := imapclient.DialTLS(r.cfg.Address, &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: host},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", r.cfg.Address, err)
	}

	if err := client.Login(r.cfg.Username, r.cfg.Password.Value()).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				r.log.Debug(ctx, "imap logout failed", zap.Error(err))
			}
		}
		_ = client.Close()
	}
	return client, cleanup, nil
}
