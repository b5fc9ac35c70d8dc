package regionservice

import (
	"fmt"
	"log"

	"github.com/golang/protobuf/proto"
	"golang.org/x/net/context"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	Pool  *WorkerPool
	Debug bool
}

func (s *Server) Compute(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, err
	}
	if s.Debug {
		log.Printf("region service: request %v, %d bytes", req.Region, proto.Size(in))
	}

	task := NewTask(ctx, req)
	s.Pool.AddQueue(task)

	select {
	case tile := <-task.Resp:
		return wrapperspb.Bytes(tile.Bytes()), nil
	case err := <-task.Error:
		return nil, fmt.Errorf("Error in ops: %v", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
