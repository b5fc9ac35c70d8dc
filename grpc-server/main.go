package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	pb "github.com/nci/gstream/worker/regionservice"
	"google.golang.org/grpc"
)

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", runtime.NumCPU(), "Maximum number of requests handled concurrently.")
	concurrency := flag.Int("c", 1, "Goroutines used to evaluate a single request.")
	maxSendMsgSize := flag.Int("max_send_msg_size", 64*1024*1024, "Maximum gRPC reply size in bytes.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	p := pb.CreateWorkerPool(*poolSize, *concurrency, *debug)

	s := grpc.NewServer(grpc.MaxSendMsgSize(*maxSendMsgSize))
	pb.RegisterRegionServiceServer(s, &pb.Server{Pool: p, Debug: *debug})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		log.Printf("shutting down")
		go func() {
			time.Sleep(5 * time.Second)
			os.Exit(1)
		}()
		s.GracefulStop()
		p.DeleteWorkerPool()
		os.Exit(0)
	}()

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Printf("region service listening on :%d with %d workers", *port, *poolSize)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
