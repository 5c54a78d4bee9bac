// Command summarizeclient exercises a running assistant over gRPC.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "ai-reading-assistant/internal/api/grpc"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "assistant gRPC address")
	file := flag.String("file", "", "file to summarize (default stdin)")
	speak := flag.Bool("speak", false, "read the summary aloud on the server")
	follow := flag.Duration("follow", 0, "start listening and stream the transcript for this long")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	client := grpcapi.NewClient(conn)

	if *follow > 0 {
		followTranscript(client, *follow)
		return
	}

	var data []byte
	if *file != "" {
		data, err = os.ReadFile(*file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := client.Summarize(ctx, string(data))
	if err != nil {
		log.Fatalf("summarize failed: %v", err)
	}
	log.Printf("Summary: %s", summary)

	if *speak {
		id, err := client.Speak(ctx, summary, 0, "")
		if err != nil {
			log.Fatalf("speak failed: %v", err)
		}
		log.Printf("Speaking: requestId=%s", id)
	}
}

func followTranscript(client *grpcapi.Client, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	id, err := client.StartListening(ctx)
	if err != nil {
		log.Fatalf("start listening failed: %v", err)
	}
	log.Printf("Listening: sessionId=%s", id)

	err = client.Transcript(ctx, func(text string) {
		log.Printf("Transcript: %s", text)
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("transcript stream ended: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := client.StopListening(stopCtx); err != nil {
		log.Printf("stop listening failed: %v", err)
	}
}
