package http

import (
	"encoding/json"

	"github.com/richgram/richgram-server/internal/auth"
	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/proto"
	"github.com/richgram/richgram-server/internal/store"
)

// commandFromInbound translates a client frame into a hub command. For
// join frames the token is validated here, so the hub only ever sees
// authenticated usernames.
func commandFromInbound(authService *auth.Service, in *proto.Inbound) (*core.Command, *proto.Error) {
	switch in.Type {
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "malformed join data"}
		}
		claims, err := authService.ValidateToken(data.Token)
		if err != nil {
			return nil, &proto.Error{Code: core.ErrCodeForbidden, Msg: "invalid token"}
		}
		return &core.Command{Kind: core.CommandJoin, User: claims.Username}, nil

	case proto.InboundTypeSwitch:
		var data proto.SwitchData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "malformed switch data"}
		}
		return &core.Command{
			Kind:     core.CommandSwitchScope,
			ChatKind: core.ScopeKind(data.Kind),
			With:     data.With,
		}, nil

	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "malformed send data"}
		}
		return &core.Command{
			Kind: core.CommandSend,
			Payload: core.Payload{
				Kind:    store.MessageKind(data.Kind),
				Text:    data.Text,
				FileURL: data.FileURL,
			},
		}, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "unknown frame type"}
	}
}

// outboundFromEvent translates a hub event into a wire frame. The
// counterpart of a private chat comes stamped on the event: the hub
// computes it per recipient at delivery time, so it survives renames.
func outboundFromEvent(ev *core.Event) *proto.Outbound {
	switch ev.Kind {
	case core.EventHistory:
		hist := proto.EventHistory{
			Kind:     string(ev.Scope.Kind),
			With:     ev.With,
			Messages: make([]proto.EventMessage, 0, len(ev.Messages)),
		}
		for _, m := range ev.Messages {
			hist.Messages = append(hist.Messages, messageToProto(ev.With, m))
		}
		return &proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameHistory, Data: hist}

	case core.EventMessage:
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data:  messageToProto(ev.With, ev.Message),
		}

	case core.EventFriendsChanged:
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameFriendsChanged,
			Data:  proto.EventFriendsChanged{},
		}

	case core.EventError:
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message},
		}

	default:
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown event"},
		}
	}
}

func messageToProto(with string, m core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      m.ID,
		Kind:    string(m.Kind),
		From:    m.Sender,
		With:    with,
		Text:    m.Text,
		FileURL: m.FileURL,
		TS:      m.CreatedAt.UnixMilli(),
	}
}
