package grpcapi

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls reading.v1.Assistant over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodSummarize, wrapperspb.String(text), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// StartListening returns the session id.
func (c *Client) StartListening(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodStartListening, &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) StopListening(ctx context.Context) error {
	return c.cc.Invoke(ctx, methodStopListening, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *Client) ClearTranscript(ctx context.Context) error {
	return c.cc.Invoke(ctx, methodClearTranscript, &emptypb.Empty{}, new(emptypb.Empty))
}

// Speak returns the playback request id. rate <= 0 uses the server default.
func (c *Client) Speak(ctx context.Context, text string, rate float64, voice string) (string, error) {
	fields := map[string]any{"text": text}
	if rate > 0 {
		fields["rate"] = rate
	}
	if voice != "" {
		fields["voice"] = voice
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return "", err
	}
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodSpeak, in, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) StopSpeaking(ctx context.Context) error {
	return c.cc.Invoke(ctx, methodStopSpeaking, &emptypb.Empty{}, new(emptypb.Empty))
}

// Transcript calls fn with every transcript update until ctx is done or the
// server closes the stream.
func (c *Client) Transcript(ctx context.Context, fn func(string)) error {
	desc := &assistantServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, methodTranscript)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(wrapperspb.StringValue)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(msg.GetValue())
	}
}
