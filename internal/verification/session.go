package verification

import (
	"sync"
	"time"
)

// Session is the verification attempt of one member.
// Its outcome leaves Pending at most once.
type Session struct {
	member   Member
	deadline time.Time
	direct   bool

	mu        sync.Mutex
	channelID uint64
	outcome   Outcome
}

func newSession(member Member, deadline time.Time, direct bool) *Session {
	return &Session{
		member:   member,
		deadline: deadline,
		direct:   direct,
	}
}

// Key returns the identity of the session.
func (s *Session) Key() Key {
	return s.member.Key()
}

// Member returns the member being verified.
func (s *Session) Member() Member {
	return s.member
}

// Deadline returns when the session times out.
func (s *Session) Deadline() time.Time {
	return s.deadline
}

// Direct reports whether the session runs over direct messages.
func (s *Session) Direct() bool {
	return s.direct
}

// ChannelID returns the verification channel, or 0 when the session has none.
func (s *Session) ChannelID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.channelID
}

// Outcome returns the current state of the session.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.outcome
}

func (s *Session) setChannel(channelID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channelID = channelID
}

// decide runs fn with the session locked while it is still pending and stores the
// outcome fn returns. fn returning Pending or an error leaves the session unchanged.
// The flag reports whether this call moved the session to a terminal outcome.
func (s *Session) decide(fn func() (Outcome, error)) (Outcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome.Terminal() {
		return s.outcome, false, nil
	}

	outcome, err := fn()
	if err != nil || !outcome.Terminal() {
		return s.outcome, false, err
	}

	s.outcome = outcome

	return outcome, true, nil
}
