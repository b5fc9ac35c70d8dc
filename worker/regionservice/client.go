package regionservice

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nci/gstream/processor"
	"github.com/nci/gstream/region"
	"google.golang.org/grpc"
)

// GRPCSource computes sub-regions on region service workers, spreading
// consecutive requests over the nodes round-robin.
type GRPCSource struct {
	Full       region.Region
	Expression string
	NoData     float64

	MaxRecvMsgSize int

	clients []RegionServiceClient
	conns   []*grpc.ClientConn
	next    uint32
}

// DialGRPCSource connects to every node. The expression is checked locally
// first so a bad job fails before any request is sent.
func DialGRPCSource(nodes []string, full region.Region, expression string, noData float64, maxRecvMsgSize int) (*GRPCSource, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no worker nodes", region.ErrInvalidArgument)
	}
	if _, err := processor.ParsePixelExpression(expression, full.Dim()); err != nil {
		return nil, err
	}

	var conns []*grpc.ClientConn
	var ccs []grpc.ClientConnInterface
	for _, node := range nodes {
		conn, err := grpc.Dial(node, grpc.WithInsecure(), grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)))
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, fmt.Errorf("dial %s: %v", node, err)
		}
		conns = append(conns, conn)
		ccs = append(ccs, conn)
	}

	src := NewGRPCSource(full, expression, noData, maxRecvMsgSize, ccs...)
	src.conns = conns
	return src, nil
}

func NewGRPCSource(full region.Region, expression string, noData float64, maxRecvMsgSize int, conns ...grpc.ClientConnInterface) *GRPCSource {
	src := &GRPCSource{
		Full:           full.Clone(),
		Expression:     expression,
		NoData:         noData,
		MaxRecvMsgSize: maxRecvMsgSize,
	}
	for _, cc := range conns {
		src.clients = append(src.clients, NewRegionServiceClient(cc))
	}
	return src
}

func (s *GRPCSource) FullRegion() region.Region {
	return s.Full
}

func (s *GRPCSource) ComputeRegion(ctx context.Context, r region.Region) (*processor.Tile, error) {
	if len(s.clients) == 0 {
		return nil, fmt.Errorf("%w: no worker connections", region.ErrInvalidArgument)
	}
	if !region.Contains(s.Full, r) {
		return nil, fmt.Errorf("%w: %v is outside %v", region.ErrInvalidArgument, r, s.Full)
	}
	if r.IsNull() {
		return processor.NewTile(r.Clone(), s.NoData), nil
	}
	if need := r.NumberOfPixels() * processor.SizeofFloat32; s.MaxRecvMsgSize > 0 && need > s.MaxRecvMsgSize {
		return nil, fmt.Errorf("%w: %v needs %d bytes, above the %d byte message limit", processor.ErrResourcesExhausted, r, need, s.MaxRecvMsgSize)
	}

	req, err := EncodeRequest(&Request{Region: r, Expression: s.Expression, NoData: s.NoData})
	if err != nil {
		return nil, err
	}

	i := atomic.AddUint32(&s.next, 1) - 1
	client := s.clients[int(i)%len(s.clients)]
	out, err := client.Compute(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := processor.BytesToFloat32(out.GetValue())
	if err != nil {
		return nil, err
	}
	tile := &processor.Tile{Region: r.Clone(), Data: data, NoData: s.NoData}
	if err := tile.Validate(); err != nil {
		return nil, err
	}
	return tile, nil
}

func (s *GRPCSource) Close() error {
	var firstErr error
	for _, c := range s.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
