package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reading.v1.Assistant"

const (
	methodSummarize       = "/" + ServiceName + "/Summarize"
	methodStartListening  = "/" + ServiceName + "/StartListening"
	methodStopListening   = "/" + ServiceName + "/StopListening"
	methodClearTranscript = "/" + ServiceName + "/ClearTranscript"
	methodSpeak           = "/" + ServiceName + "/Speak"
	methodStopSpeaking    = "/" + ServiceName + "/StopSpeaking"
	methodTranscript      = "/" + ServiceName + "/Transcript"
)

// AssistantServer is the server API for reading.v1.Assistant. Messages are
// protobuf well-known types so no generated code is needed.
type AssistantServer interface {
	Summarize(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	StartListening(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	StopListening(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	ClearTranscript(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// Speak takes a struct with "text", optional "rate" and "voice" and
	// returns the request id.
	Speak(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	StopSpeaking(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// Transcript streams the committed transcript plus pending partial
	// every time it changes.
	Transcript(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterAssistantServer registers srv on s.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&assistantServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(AssistantServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AssistantServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AssistantServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func transcriptHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AssistantServer).Transcript(in, stream)
}

var assistantServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Summarize", Handler: unaryHandler(methodSummarize, AssistantServer.Summarize)},
		{MethodName: "StartListening", Handler: unaryHandler(methodStartListening, AssistantServer.StartListening)},
		{MethodName: "StopListening", Handler: unaryHandler(methodStopListening, AssistantServer.StopListening)},
		{MethodName: "ClearTranscript", Handler: unaryHandler(methodClearTranscript, AssistantServer.ClearTranscript)},
		{MethodName: "Speak", Handler: unaryHandler(methodSpeak, AssistantServer.Speak)},
		{MethodName: "StopSpeaking", Handler: unaryHandler(methodStopSpeaking, AssistantServer.StopSpeaking)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Transcript",
			Handler:       transcriptHandler,
			ServerStreams: true,
		},
	},
	Metadata: "reading/v1/assistant.proto",
}
