package http

import (
	"encoding/json"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/proto"
	"github.com/campuslink/realtime/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeAnnounce:
		var announce proto.AnnounceData
		if err := json.Unmarshal(inbound.Data, &announce); err != nil {
			return nil, badPayload(err)
		}
		if announce.User == "" {
			return nil, &proto.Error{Code: core.ErrCodeProtocol, Msg: "user is required"}
		}
		return &core.Command{
			Kind:  core.CommandAnnounce,
			User:  announce.User,
			Token: announce.Token,
		}, nil

	case proto.InboundTypeJoinTopic, proto.InboundTypeLeaveTopic:
		var topic proto.TopicData
		if err := json.Unmarshal(inbound.Data, &topic); err != nil {
			return nil, badPayload(err)
		}
		if topic.Topic == "" {
			return nil, &proto.Error{Code: core.ErrCodeProtocol, Msg: "topic is required"}
		}
		kind := core.CommandJoinTopic
		if inbound.Type == proto.InboundTypeLeaveTopic {
			kind = core.CommandLeaveTopic
		}
		return &core.Command{Kind: kind, Topic: topic.Topic}, nil

	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, badPayload(err)
		}
		attachments := make([]store.Attachment, 0, len(send.Attachments))
		for _, a := range send.Attachments {
			attachments = append(attachments, store.Attachment{
				URL:      a.URL,
				Filename: a.Filename,
				FileType: a.FileType,
				FileSize: a.FileSize,
			})
		}
		if len(attachments) == 0 {
			attachments = nil
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Send: &core.SendRequest{
				ConversationID: send.Conversation,
				SenderID:       send.Sender,
				ReceiverID:     send.Receiver,
				Body:           send.Body,
				Kind:           store.MessageKind(send.Kind),
				Attachments:    attachments,
			},
		}, nil

	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, badPayload(err)
		}
		if typing.Conversation == "" {
			return nil, &proto.Error{Code: core.ErrCodeProtocol, Msg: "conversation_id is required"}
		}
		return &core.Command{
			Kind:         core.CommandTyping,
			Conversation: typing.Conversation,
			User:         typing.User,
			IsTyping:     typing.IsTyping,
		}, nil

	case proto.InboundTypeMarkRead:
		var markRead proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &markRead); err != nil {
			return nil, badPayload(err)
		}
		return &core.Command{
			Kind:         core.CommandMarkRead,
			Conversation: markRead.Conversation,
			User:         markRead.User,
		}, nil

	case proto.InboundTypeDelete:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, badPayload(err)
		}
		return &core.Command{
			Kind:         core.CommandDeleteMessage,
			Conversation: del.Conversation,
			MessageID:    del.MessageID,
			Scope:        core.DeleteScope(del.Scope),
		}, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeProtocol, Msg: "unknown message type"}
	}
}

func badPayload(err error) *proto.Error {
	return &proto.Error{Code: core.ErrCodeProtocol, Msg: err.Error()}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventPresenceChanged:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceChanged,
			Data:  proto.EventPresence{User: event.User, Online: event.Online},
		}

	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  proto.EventOnlineSnapshot{Users: event.Users},
		}

	case core.EventMessageReceived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageReceived,
			Data:  chatMessageFromStore(event.Message),
		}

	case core.EventNewMessageNotice:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessageNotice,
			Data: proto.EventNotice{
				Conversation: event.Conversation,
				Sender:       event.User,
				Message:      chatMessageFromStore(event.Message),
			},
		}

	case core.EventTypingStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypingStatus,
			Data:  proto.EventTyping{User: event.User, IsTyping: event.IsTyping},
		}

	case core.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesRead,
			Data:  proto.EventRead{Conversation: event.Conversation, User: event.User},
		}

	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.EventDeleted{MessageID: event.MessageID, Scope: string(event.Scope)},
		}

	case core.EventUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUpdate,
			Data:  proto.EventLiveUpdate{Kind: event.UpdateKind, Payload: event.Payload},
		}

	case core.EventSendError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func chatMessageFromStore(m *store.Message) proto.EventChatMessage {
	if m == nil {
		return proto.EventChatMessage{}
	}
	var attachments []proto.AttachmentData
	for _, a := range m.Attachments {
		attachments = append(attachments, proto.AttachmentData{
			URL:      a.URL,
			Filename: a.Filename,
			FileType: a.FileType,
			FileSize: a.FileSize,
		})
	}
	return proto.EventChatMessage{
		ID:           m.ID,
		Conversation: m.ConversationID,
		Sender:       m.SenderID,
		Receiver:     m.ReceiverID,
		Body:         m.Body,
		Kind:         string(m.Kind),
		Attachments:  attachments,
		Read:         m.Read,
		TS:           m.CreatedAt.Unix(),
	}
}
