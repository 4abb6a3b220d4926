package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/mocks"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationService(f *fixture) *service.ConversationService {
	users := service.NewUserService(f.users, nil, 4, testLogger())
	sessions := newSessionService(f, nil)
	media := newMediaService(f)
	return service.NewConversationService(users, sessions, f.messages, media, f.whatsapp, f.assistant(), testLogger())
}

func webhook(messages ...whatsapp.Message) *whatsapp.Payload {
	return &whatsapp.Payload{
		Object: whatsapp.BusinessAccountObject,
		Entry: []whatsapp.Entry{{
			ID: "WABA-1",
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.Value{Messages: messages},
			}},
		}},
	}
}

func textMessage(id, body string) whatsapp.Message {
	return whatsapp.Message{
		From:      testPhone,
		ID:        id,
		Timestamp: "1700000000",
		Type:      "text",
		Text:      &whatsapp.Text{Body: body},
	}
}

func messagesWith(f *fixture, dir domain.Direction) []*domain.Message {
	var out []*domain.Message
	for _, m := range f.messages.Messages {
		if m.Direction == dir {
			out = append(out, m)
		}
	}
	return out
}

func TestConversationService_TextMessage(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(textMessage("wamid.in.1", "hi there"))))

	user, err := f.users.GetByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.NotNil(t, user.LastSeenAt)

	inbound := messagesWith(f, domain.DirectionInbound)
	require.Len(t, inbound, 1)
	assert.Equal(t, "hi there", inbound[0].Content)
	assert.Equal(t, "wamid.in.1", inbound[0].WhatsAppMessageID)
	assert.Equal(t, domain.MessageStatusDelivered, inbound[0].Status)
	assert.Equal(t, "1700000000", inbound[0].Metadata["timestamp"])
	assert.True(t, inbound[0].IsProcessed)

	session := f.sessions.Sessions[inbound[0].SessionID]
	require.NotNil(t, session)
	assert.Equal(t, domain.SessionTypeDaily, session.Type)
	assert.Equal(t, user.ID, session.UserID)

	outbound := messagesWith(f, domain.DirectionOutbound)
	require.Len(t, outbound, 1)
	assert.Equal(t, "Hello from the assistant", outbound[0].Content)
	assert.Equal(t, domain.MessageStatusSent, outbound[0].Status)
	assert.Equal(t, "mock", outbound[0].Metadata["model"])
	assert.Equal(t, 10, outbound[0].Metadata["tokens"])

	assert.Equal(t, []mocks.SentMessage{{To: testPhone, Body: "Hello from the assistant"}}, f.whatsapp.SentMessages())
	assert.Equal(t, []string{"wamid.in.1"}, f.whatsapp.Read)

	require.Len(t, f.provider.Requests, 1)
	req := f.provider.Requests[0]
	require.Len(t, req, 2)
	assert.Equal(t, ai.Message{Role: ai.RoleSystem, Content: ai.ConversationalPrompt}, req[0])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "hi there"}, req[1])
}

func TestConversationService_History(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(textMessage("wamid.in.1", "first"))))
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(textMessage("wamid.in.2", "second"))))

	require.Len(t, f.users.Users, 1)
	require.Len(t, f.sessions.Sessions, 1)
	require.Len(t, f.provider.Requests, 2)
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleSystem, Content: ai.ConversationalPrompt},
		{Role: ai.RoleUser, Content: "first"},
		{Role: ai.RoleAssistant, Content: "Hello from the assistant"},
		{Role: ai.RoleUser, Content: "second"},
	}, f.provider.Requests[1])
}

func TestConversationService_ImageMessage(t *testing.T) {
	f := newFixture()
	serveMedia(f, []byte("jpeg-bytes"), "image/jpeg")
	svc := newConversationService(f)

	msg := whatsapp.Message{
		From:  testPhone,
		ID:    "wamid.img",
		Type:  "image",
		Image: &whatsapp.MediaRef{ID: "media-1", MimeType: "image/jpeg"},
	}
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(msg)))

	inbound := messagesWith(f, domain.DirectionInbound)
	require.Len(t, inbound, 1)
	assert.Equal(t, domain.MessageTypeImage, inbound[0].Type)
	assert.Empty(t, inbound[0].Content)

	require.Len(t, f.media.Media, 1)
	assert.Equal(t, inbound[0].ID, f.media.Media[0].MessageID)
	assert.Equal(t, "media-1", f.media.Media[0].Metadata["whatsappMediaId"])

	emitted := f.emitter.emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, task.QueueMediaProcessing, emitted[0].Queue)

	req := f.provider.Requests[0]
	assert.Equal(t, service.MediaPlaceholderText, req[len(req)-1].Content)
	assert.Len(t, f.whatsapp.SentMessages(), 1)
}

func TestConversationService_MediaFailureStillReplies(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	msg := whatsapp.Message{
		From:     testPhone,
		ID:       "wamid.doc",
		Type:     "document",
		Document: &whatsapp.MediaRef{ID: "media-2", Filename: "spec.pdf"},
	}
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(msg)))

	assert.Empty(t, f.media.Media)
	inbound := messagesWith(f, domain.DirectionInbound)
	require.Len(t, inbound, 1)
	assert.Equal(t, "spec.pdf", inbound[0].Content)
	assert.Equal(t, []mocks.SentMessage{{To: testPhone, Body: "Hello from the assistant"}}, f.whatsapp.SentMessages())
}

func TestConversationService_LocationMessage(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	msg := whatsapp.Message{
		From:     testPhone,
		ID:       "wamid.loc",
		Type:     "location",
		Location: &whatsapp.Location{Latitude: 52.52, Longitude: 13.405, Name: "Berlin"},
	}
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(msg)))

	inbound := messagesWith(f, domain.DirectionInbound)
	require.Len(t, inbound, 1)
	assert.Equal(t, domain.MessageTypeLocation, inbound[0].Type)
	assert.Equal(t, "Location: 52.520000, 13.405000 (Berlin)", inbound[0].Content)
}

func TestConversationService_AIFailureSendsFallback(t *testing.T) {
	f := newFixture()
	f.provider.Err = errors.New("rate limited")
	svc := newConversationService(f)

	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(textMessage("wamid.in.1", "hi"))))

	assert.Empty(t, messagesWith(f, domain.DirectionOutbound))
	inbound := messagesWith(f, domain.DirectionInbound)
	require.Len(t, inbound, 1)
	assert.False(t, inbound[0].IsProcessed)
	assert.Equal(t, []mocks.SentMessage{{To: testPhone, Body: service.FallbackReplyText}}, f.whatsapp.SentMessages())
}

func TestConversationService_SendFailureMarksResponseFailed(t *testing.T) {
	f := newFixture()
	calls := 0
	f.whatsapp.SendTextFn = func(ctx context.Context, to, body string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return "wamid.fallback", nil
	}
	svc := newConversationService(f)

	require.NoError(t, svc.HandleWebhook(context.Background(), webhook(textMessage("wamid.in.1", "hi"))))

	outbound := messagesWith(f, domain.DirectionOutbound)
	require.Len(t, outbound, 1)
	assert.Equal(t, domain.MessageStatusFailed, outbound[0].Status)
	assert.False(t, outbound[0].IsProcessed)

	sent := f.whatsapp.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, service.FallbackReplyText, sent[1].Body)
}

func TestConversationService_DuplicateDeliveryIgnored(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	payload := webhook(textMessage("wamid.in.1", "hi"))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload))

	assert.Len(t, messagesWith(f, domain.DirectionInbound), 1)
	assert.Len(t, f.whatsapp.SentMessages(), 1)
	assert.Len(t, f.provider.Requests, 1)
}

func TestConversationService_IgnoredPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload *whatsapp.Payload
	}{
		{"nil payload", nil},
		{"other object", &whatsapp.Payload{Object: "page"}},
		{"statuses only", &whatsapp.Payload{
			Object: whatsapp.BusinessAccountObject,
			Entry: []whatsapp.Entry{{Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.Value{Statuses: []whatsapp.Status{{ID: "wamid.out.1", Status: "read"}}},
			}}}},
		}},
		{"other field", &whatsapp.Payload{
			Object: whatsapp.BusinessAccountObject,
			Entry: []whatsapp.Entry{{Changes: []whatsapp.Change{{
				Field: "account_update",
				Value: whatsapp.Value{Messages: []whatsapp.Message{textMessage("wamid.x", "hi")}},
			}}}},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			svc := newConversationService(f)

			require.NoError(t, svc.HandleWebhook(context.Background(), tc.payload))
			assert.Empty(t, f.messages.Messages)
			assert.Empty(t, f.whatsapp.SentMessages())
		})
	}
}

func TestConversationService_InvalidSender(t *testing.T) {
	f := newFixture()
	svc := newConversationService(f)

	msg := textMessage("wamid.in.1", "hi")
	msg.From = "abc"
	err := svc.HandleWebhook(context.Background(), webhook(msg))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Empty(t, f.messages.Messages)
}
