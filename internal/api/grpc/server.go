// Package grpcapi exposes the reading assistant over gRPC.
package grpcapi

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ai-reading-assistant/internal/service/capture"
	"ai-reading-assistant/internal/service/playback"
)

// DefaultTranscriptPoll is how often Transcript checks for changes.
const DefaultTranscriptPoll = 200 * time.Millisecond

// Capture is the capture session surface used by the server.
type Capture interface {
	Start(ctx context.Context) error
	Stop()
	Clear()
	Snapshot() capture.Snapshot
}

// Playback is the playback surface used by the server.
type Playback interface {
	Speak(ctx context.Context, req playback.Request) error
	Stop()
	Status() playback.Status
}

// Summarizer produces summaries on behalf of a named source.
type Summarizer interface {
	Summarize(source, text string) string
}

type Server struct {
	capture     Capture
	playback    Playback
	summarizer  Summarizer
	defaultRate float64
	poll        time.Duration
}

// Register creates the server and registers it on g.
func Register(g *grpc.Server, c Capture, p Playback, s Summarizer, defaultRate float64) *Server {
	srv := &Server{
		capture:     c,
		playback:    p,
		summarizer:  s,
		defaultRate: defaultRate,
		poll:        DefaultTranscriptPoll,
	}
	RegisterAssistantServer(g, srv)
	return srv
}

func (s *Server) Summarize(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.summarizer.Summarize("grpc", in.GetValue())), nil
}

func (s *Server) StartListening(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	// The session outlives the call.
	if err := s.capture.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, captureStatus(err)
	}
	return wrapperspb.String(s.capture.Snapshot().SessionId), nil
}

func (s *Server) StopListening(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.capture.Stop()
	return &emptypb.Empty{}, nil
}

func (s *Server) ClearTranscript(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.capture.Clear()
	return &emptypb.Empty{}, nil
}

func (s *Server) Speak(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := in.GetFields()
	req := playback.Request{
		Text:  fields["text"].GetStringValue(),
		Rate:  s.defaultRate,
		Voice: fields["voice"].GetStringValue(),
	}
	if v, ok := fields["rate"]; ok {
		req.Rate = v.GetNumberValue()
	}

	if err := s.playback.Speak(context.WithoutCancel(ctx), req); err != nil {
		if errors.Is(err, playback.ErrEngineUnavailable) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(s.playback.Status().RequestId), nil
}

func (s *Server) StopSpeaking(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.playback.Stop()
	return &emptypb.Empty{}, nil
}

func (s *Server) Transcript(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	last := ""
	first := true
	for {
		snap := s.capture.Snapshot()
		text := snap.CommittedTranscript + snap.PendingPartial
		if first || text != last {
			if err := stream.SendMsg(wrapperspb.String(text)); err != nil {
				log.Debug().Err(err).Msg("Transcript stream send failed")
				return err
			}
			last = text
			first = false
		}

		select {
		case <-stream.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

func captureStatus(err error) error {
	switch {
	case errors.Is(err, capture.ErrEngineUnavailable):
		return status.Error(codes.Unavailable, capture.MsgEngineUnavailable)
	case errors.Is(err, capture.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, capture.MsgPermissionDenied)
	case errors.Is(err, capture.ErrAlreadyListening):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, capture.MsgStartFailed)
	}
}
