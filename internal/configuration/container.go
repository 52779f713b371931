package configuration

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"SkillXChange/internal/auth"
	"SkillXChange/internal/event"
	"SkillXChange/internal/hydrate"
	"SkillXChange/internal/model"
	"SkillXChange/internal/repo"
	"SkillXChange/internal/state"
	"SkillXChange/internal/transport"
)

// Container wires the chat core together: one transport channel per process,
// REST repositories, hydration, and the three state machines. Constructed at
// application start and shared by reference.
type Container struct {
	Config  Config
	Logger  *zap.Logger
	Tokens  auth.TokenSource
	Channel *transport.Channel

	Conversations repo.ConversationRepository
	Users         repo.UserRepository

	List          *state.ConversationList
	Thread        *state.Thread
	Notifications *state.Notifications

	unsubscribes []func()
}

func BuildContainer(config *Config, tokens auth.TokenSource) (*Container, error) {
	var logger *zap.Logger
	var err error
	if config.Env == "dev" || config.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	commClient := repo.NewClient(config.Communication.BaseURL, tokens, logger)
	authClient := repo.NewClient(config.Auth.BaseURL, tokens, logger)

	conversations := repo.NewConversationRepository(commClient, logger)
	users := repo.NewUserRepository(authClient, logger)
	notifications := repo.NewNotificationRepository(commClient, logger)

	hydrator := hydrate.NewHydrator(users, logger)
	channel := transport.NewChannel(config.Communication.SocketURL, tokens, logger)

	thread := state.NewThread(conversations, channel, config.Client.PageSize, logger)
	thread.SetTypingQuiet(time.Duration(config.Client.TypingQuietMs) * time.Millisecond)

	return &Container{
		Config:        *config,
		Logger:        logger,
		Tokens:        tokens,
		Channel:       channel,
		Conversations: conversations,
		Users:         users,
		List:          state.NewConversationList(conversations, users, hydrator, config.Client.PageSize, logger),
		Thread:        thread,
		Notifications: state.NewNotifications(notifications, config.Client.PageSize, logger),
	}, nil
}

// Start connects the channel, bootstraps the state machines and subscribes
// them to server-pushed events. Subscriptions must happen after Connect:
// subscribing on a disconnected channel registers nothing.
func (c *Container) Start(ctx context.Context) error {
	c.Channel.Connect()

	if err := c.List.Bootstrap(ctx); err != nil {
		return err
	}
	if user := c.List.CurrentUser(); user != nil {
		c.Thread.SetCurrentUser(user.ID)
	}
	if err := c.Notifications.Refresh(ctx); err != nil {
		c.Logger.Warn("notification feed unavailable", zap.Error(err))
	}

	c.bindEvents(ctx)
	return nil
}

func (c *Container) bindEvents(ctx context.Context) {
	c.subscribe(event.EventReceiveMessage, func(payload json.RawMessage) {
		var message model.Message
		if err := json.Unmarshal(payload, &message); err != nil {
			c.Logger.Error("bad receive_message payload", zap.Error(err))
			return
		}
		c.List.HandleIncomingMessage(ctx, message)
		c.Thread.HandleIncomingMessage(message)
	})

	c.subscribe(event.EventParticipantTyping, func(payload json.RawMessage) {
		var ev event.ParticipantTyping
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		c.Thread.HandleParticipantTyping(ev)
	})

	c.subscribe(event.EventParticipantStoppedTyping, func(payload json.RawMessage) {
		var ev event.ParticipantTyping
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		c.Thread.HandleParticipantStoppedTyping(ev)
	})

	c.subscribe(event.EventMessagesRead, func(payload json.RawMessage) {
		var receipt event.MessagesRead
		if err := json.Unmarshal(payload, &receipt); err != nil {
			return
		}
		c.List.HandleMessagesRead(receipt)
	})

	c.subscribe(event.EventNewNotification, func(payload json.RawMessage) {
		var notification model.Notification
		if err := json.Unmarshal(payload, &notification); err != nil {
			return
		}
		c.Notifications.HandleNew(notification)
	})

	c.subscribe(event.EventNotificationsUpdated, func(payload json.RawMessage) {
		var ev event.NotificationsUpdated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		c.Notifications.HandleUpdated(ctx, ev)
	})
}

func (c *Container) subscribe(name string, handler transport.Handler) {
	c.unsubscribes = append(c.unsubscribes, c.Channel.Subscribe(name, handler))
}

// Close unsubscribes every handler, drops the connection and flushes logs.
func (c *Container) Close() {
	for _, unsubscribe := range c.unsubscribes {
		unsubscribe()
	}
	c.unsubscribes = nil
	c.Channel.Disconnect()
	_ = c.Logger.Sync()
}
