package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/client/chatsync"
	"secure_chat_service/internal/client/offlinequeue"
	"secure_chat_service/internal/client/transport"

	"github.com/spf13/cobra"
)

var conversationID string

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
}

type syncResult struct {
	res offlinequeue.FlushResult
	err error
}

type session struct {
	engine *chatsync.Engine
	tr     *transport.Client
	synced chan syncResult
	close  func()
}

func startSession(ctx context.Context, convID string, onChange func()) (*session, error) {
	me, err := whoami()
	if err != nil {
		return nil, err
	}
	q, closeQueue, err := openQueue()
	if err != nil {
		return nil, err
	}

	tr := newTransport()
	s := &session{tr: tr, synced: make(chan syncResult, 1)}
	s.engine = chatsync.New(chatsync.Config{
		Session:        me,
		ConversationID: convID,
		API:            newAPI(),
		Transport:      tr,
		Queue:          q,
		HistoryLimit:   cfg.HistoryLimit,
		OnSynced: func(res offlinequeue.FlushResult, err error) {
			select {
			case s.synced <- syncResult{res, err}:
			default:
			}
		},
		OnChange: onChange,
	})
	tr.OnStateChange(func(st transport.State) {
		if st != transport.StateConnected {
			fmt.Fprintf(os.Stderr, "-- %s\n", st)
		}
	})
	tr.Start(ctx)

	s.close = func() {
		s.engine.Close()
		_ = tr.Close()
		closeQueue()
	}
	return s, nil
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat in one conversation (/read marks read, /quit exits)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConversation(conversationID); err != nil {
			return err
		}
		ctx, cancel := withSignal(cmd.Context())
		defer cancel()

		p := &printer{seen: map[string]domain.MessageStatus{}}
		changes := make(chan struct{}, 1)
		s, err := startSession(ctx, conversationID, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return err
		}
		defer s.close()

		lines := make(chan string)
		go func() {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				lines <- sc.Text()
			}
			close(lines)
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				p.render(s.engine)
			case r := <-s.synced:
				if r.err != nil {
					fmt.Fprintln(os.Stderr, "sync:", r.err)
					continue
				}
				p.render(s.engine)
				if r.res.Sent+r.res.Failed > 0 {
					fmt.Printf("-- offline queue: sent=%d failed=%d\n", r.res.Sent, r.res.Failed)
				}
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if done := handleLine(ctx, s.engine, strings.TrimSpace(line)); done {
					return nil
				}
			}
		}
	},
}

func handleLine(ctx context.Context, e *chatsync.Engine, line string) bool {
	switch line {
	case "":
		return false
	case "/quit":
		return true
	case "/read":
		ids, err := e.MarkRead(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
		} else {
			fmt.Printf("-- marked %d read\n", len(ids))
		}
		return false
	}

	_ = e.StartTyping()
	res, err := e.Send(ctx, line, nil)
	_ = e.StopTyping()
	switch {
	case err != nil:
		fmt.Fprintln(os.Stderr, "send:", err)
	case res.Queued:
		fmt.Printf("-- queued (%s)\n", res.Reason)
	}
	return false
}

// printer 只印新的訊息與狀態變化
type printer struct {
	mu     sync.Mutex
	seen   map[string]domain.MessageStatus
	typing string
}

func (p *printer) render(e *chatsync.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range e.Messages() {
		prev, ok := p.seen[m.ID]
		if !ok {
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.FromEmail, m.Text)
		} else if prev != m.Status {
			fmt.Printf("-- %s %s\n", m.ID, m.Status)
		}
		p.seen[m.ID] = m.Status
	}

	typing := strings.Join(e.TypingUsers(), ", ")
	if typing != p.typing && typing != "" {
		fmt.Printf("-- %s typing...\n", typing)
	}
	p.typing = typing

	if e.Deleted() {
		fmt.Println("-- conversation deleted")
	}
}
