package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/eventlog"
	"github.com/Billy-Davies-2/basket-tracker/internal/lineup"
	"github.com/Billy-Davies-2/basket-tracker/internal/live"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
	"github.com/Billy-Davies-2/basket-tracker/internal/session"
)

// Server implements basket.v1.GameSession on top of the live manager
type Server struct {
	live   *live.Manager
	pubsub *pubsub.PubSub
}

// NewServer creates a new gRPC server
func NewServer(m *live.Manager, ps *pubsub.PubSub) *Server {
	return &Server{live: m, pubsub: ps}
}

var _ GameSessionServer = (*Server)(nil)

func (s *Server) GetSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.live.View()
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(v)
}

// CreateSession expects a game: {"id", "opponent", "roster", ...}
func (s *Server) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var game models.Game
	if err := fromStruct(req, &game); err != nil {
		return nil, err
	}
	logger.Info("gRPC: CreateSession", "opponent", game.Opponent, "roster", len(game.Roster))
	return viewResult(s.live.NewSession(game))
}

// SetStartingFive expects {"ids": [five roster ids]}
func (s *Server) SetStartingFive(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	return viewResult(s.live.SetStartingFive(in.IDs))
}

func (s *Server) StartClock(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	logger.Debug("gRPC: StartClock")
	return viewResult(s.live.StartClock())
}

func (s *Server) PauseClock(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	logger.Debug("gRPC: PauseClock")
	return viewResult(s.live.PauseClock())
}

func (s *Server) NextPeriod(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	logger.Debug("gRPC: NextPeriod")
	return viewResult(s.live.NextPeriod())
}

// Substitute expects {"out": id, "in": id}
func (s *Server) Substitute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Out string `json:"out"`
		In  string `json:"in"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.Info("gRPC: Substitute", "out", in.Out, "in", in.In)
	events, v, err := s.live.Substitute(in.Out, in.In)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"events": events, "session": v})
}

// RecordEvent expects {"playerId", "team", "type", "meta"}
func (s *Server) RecordEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in session.EventInput
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	ev, v, err := s.live.Record(in)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"event": ev, "session": v})
}

func (s *Server) Undo(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.eventResult(s.live.Undo())
}

func (s *Server) Redo(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.eventResult(s.live.Redo())
}

func (s *Server) Finalize(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	summary, v, err := s.live.Finalize()
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"lineup": summary, "session": v})
}

// WatchEvents streams every live update until the client goes away
func (s *Server) WatchEvents(_ *structpb.Struct, stream grpc.ServerStream) error {
	logger.Debug("gRPC: New client connected to event stream")
	ch := s.pubsub.Subscribe()
	defer s.pubsub.Unsubscribe(ch)

	for {
		select {
		case event, open := <-ch:
			if !open {
				return nil
			}
			msg, err := toStruct(event)
			if err != nil {
				logger.Warn("gRPC: Failed to encode event", "type", event.Type, "error", err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				logger.Error("gRPC: Failed to send event to stream", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}

func viewResult(v session.View, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(v)
}

// eventResult answers undo and redo; an empty history yields a null event
// and the unchanged session
func (s *Server) eventResult(ev models.Event, v session.View, err error) (*structpb.Struct, error) {
	if errors.Is(err, eventlog.ErrEmptyHistory) {
		v, err = s.live.View()
		if err != nil {
			return nil, toStatus(err)
		}
		return toStruct(map[string]any{"event": nil, "session": v})
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"event": ev, "session": v})
}

// toStruct converts v through its JSON form
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

func fromStruct(req *structpb.Struct, v any) error {
	data, err := json.Marshal(req.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode: %v", err)
	}
	return nil
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, session.ErrInvalidEvent),
		errors.Is(err, models.ErrInvalidRoster),
		errors.Is(err, lineup.ErrInvalidSubstitution):
		code = codes.InvalidArgument
	case errors.Is(err, live.ErrNoSession),
		errors.Is(err, dal.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, session.ErrNotLive),
		errors.Is(err, session.ErrFinalized):
		code = codes.FailedPrecondition
	default:
		logger.Error("gRPC: request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
