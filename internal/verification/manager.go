package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/chopper/internal/age"
	"github.com/robalyx/chopper/internal/database/types"
	"go.uber.org/zap"
)

// Dependencies are the collaborators a Manager works with.
type Dependencies struct {
	Records     RecordStore
	LogChannels LogChannelStore
	Registry    Registry
	Channels    ChannelProvisioner
	Messenger   Messenger
	Members     MembershipController
	Clock       Clock
}

// Manager starts verification sessions and drives them to their outcome.
type Manager struct {
	settings    Settings
	records     RecordStore
	logChannels LogChannelStore
	registry    Registry
	channels    ChannelProvisioner
	messenger   Messenger
	members     MembershipController
	clock       Clock
	scheduler   *scheduler
	effects     effects
	logger      *zap.Logger
}

// NewManager creates a verification manager. A nil clock uses the wall clock.
func NewManager(settings Settings, deps Dependencies, logger *zap.Logger) *Manager {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}

	logger = logger.Named("verification")

	return &Manager{
		settings:    settings,
		records:     deps.Records,
		logChannels: deps.LogChannels,
		registry:    deps.Registry,
		channels:    deps.Channels,
		messenger:   deps.Messenger,
		members:     deps.Members,
		clock:       clock,
		scheduler:   newScheduler(clock),
		effects:     effects{logger: logger},
		logger:      logger,
	}
}

// Settings returns the workflow settings of the manager.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Session returns the active session of a member.
func (m *Manager) Session(key Key) (*Session, bool) {
	return m.registry.Get(key)
}

// HandleJoin starts a session for a newly joined member.
// Bots, members with a record and members with an active session are skipped.
func (m *Manager) HandleJoin(ctx context.Context, member Member) error {
	if member.Bot {
		return nil
	}

	exists, err := m.records.HasRecord(ctx, member.GuildID, member.UserID)
	if err != nil {
		return fmt.Errorf("failed to check birthday record: %w", err)
	}

	if exists {
		m.logger.Debug("Member already verified, skipping",
			zap.Uint64("guildID", member.GuildID),
			zap.Uint64("userID", member.UserID))
		return nil
	}

	session := newSession(member, m.clock.Now().Add(m.settings.Timeout), false)
	if err := m.registry.Register(ctx, session); err != nil {
		if errors.Is(err, ErrAlreadyActive) {
			m.logger.Debug("Verification already in progress, skipping",
				zap.Uint64("guildID", member.GuildID),
				zap.Uint64("userID", member.UserID))
			return nil
		}

		return fmt.Errorf("failed to register session: %w", err)
	}

	var channelID uint64
	m.effects.bestEffort(ctx, "create channel", member.Key(), func(ctx context.Context) error {
		var err error
		channelID, err = m.channels.CreatePrivateChannel(ctx, member.GuildID, member, m.settings.ModeratorRole)
		return err
	})

	if channelID != 0 {
		session.setChannel(channelID)

		m.effects.bestEffort(ctx, "send prompt", member.Key(), func(ctx context.Context) error {
			return m.messenger.SendPrompt(ctx, channelID, member)
		})
	}

	m.arm(session)

	m.logger.Info("Started verification session",
		zap.Uint64("guildID", member.GuildID),
		zap.Uint64("userID", member.UserID),
		zap.Uint64("channelID", channelID),
		zap.Time("deadline", session.Deadline()))

	return nil
}

// RequestVerification starts a session over direct messages for a member who asked for one.
// It fails with ErrAlreadyVerified, ErrAlreadyActive, or ErrExternalOperation when the
// prompt cannot be delivered.
func (m *Manager) RequestVerification(ctx context.Context, member Member) error {
	exists, err := m.records.HasRecord(ctx, member.GuildID, member.UserID)
	if err != nil {
		return fmt.Errorf("failed to check birthday record: %w", err)
	}

	if exists {
		return ErrAlreadyVerified
	}

	session := newSession(member, m.clock.Now().Add(m.settings.Timeout), true)
	if err := m.registry.Register(ctx, session); err != nil {
		return err
	}

	if err := m.messenger.SendDirectPrompt(ctx, member); err != nil {
		m.deregister(ctx, session.Key())
		return fmt.Errorf("%w: send direct prompt: %w", ErrExternalOperation, err)
	}

	// Direct sessions time out like join sessions, so an unanswered prompt kicks the member
	m.arm(session)

	m.logger.Info("Started direct verification session",
		zap.Uint64("guildID", member.GuildID),
		zap.Uint64("userID", member.UserID),
		zap.Time("deadline", session.Deadline()))

	return nil
}

// Submit decides a pending session with the birth date the member entered.
//
// It fails with age.ErrInvalidFormat for malformed dates and types.ErrDuplicateKey
// when the member is already registered; both leave the session pending.
// ErrNoActiveSession is returned when there is nothing to decide, before the
// date is looked at.
func (m *Manager) Submit(ctx context.Context, key Key, dateText string) (SubmitResult, error) {
	session, ok := m.registry.Get(key)
	if !ok || session.Outcome().Terminal() {
		return SubmitResult{}, ErrNoActiveSession
	}

	result, err := age.Evaluate(dateText, m.clock.Now(), m.settings.ToleranceMonths)
	if err != nil {
		return SubmitResult{}, err
	}

	outcome, decided, err := session.decide(func() (Outcome, error) {
		exists, err := m.records.HasRecord(ctx, key.GuildID, key.UserID)
		if err != nil {
			return Pending, fmt.Errorf("failed to check birthday record: %w", err)
		}

		if exists {
			return Pending, types.ErrDuplicateKey
		}

		if result.Underage() {
			return Banned, nil
		}

		member := session.Member()
		err = m.records.InsertRecord(ctx, &types.BirthdayRecord{
			GuildID:      key.GuildID,
			UserID:       key.UserID,
			UserTag:      member.Tag,
			BirthdayDate: age.FormatDate(result.Birthday),
		})
		if err != nil {
			return Pending, err
		}

		return Verified, nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	if !decided {
		return SubmitResult{}, ErrNoActiveSession
	}

	if outcome == Banned {
		m.effects.bestEffort(ctx, "ban", key, func(ctx context.Context) error {
			return m.members.Ban(ctx, key.GuildID, key.UserID, BanReason)
		})
	}

	m.postLog(ctx, LogEntry{
		Outcome:  outcome,
		Member:   session.Member(),
		Age:      result.Age,
		Birthday: age.FormatDate(result.Birthday),
		At:       m.clock.Now(),
	})

	m.deregister(ctx, key)
	m.scheduleChannelDeletion(session)

	m.logger.Info("Verification decided",
		zap.Uint64("guildID", key.GuildID),
		zap.Uint64("userID", key.UserID),
		zap.Stringer("outcome", outcome),
		zap.Int("age", result.Age))

	return SubmitResult{Outcome: outcome, Age: result.Age}, nil
}

// Close stops pending timeouts, deletes channels still waiting out their grace
// delay and waits for running follow-ups.
func (m *Manager) Close() {
	m.scheduler.close()
	m.logger.Info("Verification manager closed", zap.Int("abandonedSessions", m.registry.Len()))
}

// arm schedules the timeout of a session. The timer is never cancelled; it is a
// no-op when the session was decided first.
func (m *Manager) arm(session *Session) {
	delay := session.Deadline().Sub(m.clock.Now())
	if !m.scheduler.after(delay, func(ctx context.Context) { m.expire(ctx, session) }) {
		m.logger.Warn("Manager closed, session will not time out",
			zap.Uint64("guildID", session.Key().GuildID),
			zap.Uint64("userID", session.Key().UserID))
	}
}

// expire ends a session whose deadline passed. A member who got a record in the
// meantime is closed as verified and keeps their membership; everyone else is kicked.
func (m *Manager) expire(ctx context.Context, session *Session) {
	key := session.Key()

	outcome, decided, _ := session.decide(func() (Outcome, error) {
		exists, err := m.records.HasRecord(ctx, key.GuildID, key.UserID)
		if err != nil {
			m.logger.Error("Failed to check birthday record on timeout, removing member",
				zap.Uint64("guildID", key.GuildID),
				zap.Uint64("userID", key.UserID),
				zap.Error(err))
			return Kicked, nil
		}

		if exists {
			return Verified, nil
		}

		return Kicked, nil
	})
	if !decided {
		return
	}

	m.deregister(ctx, key)

	if outcome == Kicked {
		m.effects.bestEffort(ctx, "kick", key, func(ctx context.Context) error {
			return m.members.Kick(ctx, key.GuildID, key.UserID, KickReason)
		})
	}

	if channelID := session.ChannelID(); channelID != 0 {
		m.effects.bestEffort(ctx, "delete channel", key, func(ctx context.Context) error {
			return m.channels.DeleteChannel(ctx, channelID)
		})
	}

	m.logger.Info("Verification timed out",
		zap.Uint64("guildID", key.GuildID),
		zap.Uint64("userID", key.UserID),
		zap.Stringer("outcome", outcome))
}

// scheduleChannelDeletion removes a decided session's channel after the grace delay,
// or during Close when the manager shuts down first.
func (m *Manager) scheduleChannelDeletion(session *Session) {
	channelID := session.ChannelID()
	if channelID == 0 {
		return
	}

	key := session.Key()
	m.scheduler.cleanup(m.settings.Grace, func(ctx context.Context) {
		m.effects.bestEffort(ctx, "delete channel", key, func(ctx context.Context) error {
			return m.channels.DeleteChannel(ctx, channelID)
		})
	})
}

// postLog sends a decision to the guild's log channel when one is configured.
func (m *Manager) postLog(ctx context.Context, entry LogEntry) {
	key := entry.Member.Key()

	channelID, err := m.logChannels.GetLogChannel(ctx, key.GuildID)
	if err != nil {
		if !errors.Is(err, types.ErrLogChannelNotSet) {
			m.logger.Warn("Failed to get log channel",
				zap.Uint64("guildID", key.GuildID),
				zap.Error(err))
		}
		return
	}

	m.effects.bestEffort(ctx, "send log", key, func(ctx context.Context) error {
		return m.messenger.SendLog(ctx, channelID, entry)
	})
}

func (m *Manager) deregister(ctx context.Context, key Key) {
	m.effects.bestEffort(ctx, "deregister session", key, func(ctx context.Context) error {
		return m.registry.Deregister(ctx, key)
	})
}
