package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// SignupSender delivers a signup announcement.
type SignupSender interface {
	NotifySignup(ctx context.Context, u domain.User) error
}

// NotifierOptions size the signup notifier. Zero values pick defaults.
type NotifierOptions struct {
	Workers        int
	Buffer         int
	SendTimeout    time.Duration
	HandoffTimeout time.Duration
}

// SignupNotifier hands signup announcements to a small worker pool so the
// signup request does not wait on the queue. When the pool is saturated the
// announcement is sent inline.
type SignupNotifier struct {
	sender         SignupSender
	log            *log.Logger
	jobs           chan domain.User
	sendTimeout    time.Duration
	handoffTimeout time.Duration
	wg             sync.WaitGroup
	closeOnce      sync.Once
}

func NewSignupNotifier(sender SignupSender, opts NotifierOptions, logger *log.Logger) *SignupNotifier {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.HandoffTimeout < 0 {
		opts.HandoffTimeout = 0
	}
	n := &SignupNotifier{
		sender:         sender,
		log:            logger,
		jobs:           make(chan domain.User, opts.Buffer),
		sendTimeout:    opts.SendTimeout,
		handoffTimeout: opts.HandoffTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
	logger.Infof("signup notifier started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		opts.Workers, opts.Buffer, opts.SendTimeout, opts.HandoffTimeout)
	return n
}

func (n *SignupNotifier) worker(id int) {
	defer n.wg.Done()
	for u := range n.jobs {
		if err := n.send(u); err != nil {
			n.log.Errorf("signup notification failed, err: %v, user: %s, worker: %d", err, u.Subject, id)
		}
	}
}

func (n *SignupNotifier) send(u domain.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.sendTimeout)
	defer cancel()
	return n.sender.NotifySignup(ctx, u)
}

// Notify announces u, in the background when a worker can take it.
func (n *SignupNotifier) Notify(u domain.User) {
	if n.tryHandoff(u) {
		return
	}
	n.log.Warn("signup notifier saturated; sending inline")
	if err := n.send(u); err != nil {
		n.log.Errorf("signup notification failed inline, err: %v, user: %s", err, u.Subject)
	}
}

func (n *SignupNotifier) tryHandoff(u domain.User) bool {
	if ok, closed := trySendNonBlocking(n.jobs, u); closed {
		return false
	} else if ok {
		return true
	}

	if n.handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(n.handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(n.jobs, u, timer.C)
	if closed {
		return false
	}
	return ok
}

// Close stops accepting work and waits for queued announcements.
func (n *SignupNotifier) Close() {
	n.closeOnce.Do(func() {
		close(n.jobs)
	})
	n.wg.Wait()
}

func trySendNonBlocking(ch chan domain.User, u domain.User) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- u:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.User, u domain.User, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- u:
		return true, false
	case <-timer:
		return false, false
	}
}
