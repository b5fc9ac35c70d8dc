package regionservice

import (
	"fmt"
	"math"

	"github.com/nci/gstream/region"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request is the decoded form of a Compute call.
type Request struct {
	Region     region.Region
	Expression string
	NoData     float64
}

func EncodeRequest(req *Request) (*structpb.Struct, error) {
	origin := make([]interface{}, req.Region.Dim())
	size := make([]interface{}, req.Region.Dim())
	for d := range origin {
		origin[d] = float64(req.Region.Origin[d])
		size[d] = float64(req.Region.Size[d])
	}
	return structpb.NewStruct(map[string]interface{}{
		"origin": origin,
		"size":   size,
		"expr":   req.Expression,
		"nodata": req.NoData,
	})
}

func DecodeRequest(in *structpb.Struct) (*Request, error) {
	fields := in.GetFields()

	origin, err := intList(fields["origin"])
	if err != nil {
		return nil, fmt.Errorf("%w: origin: %v", region.ErrInvalidArgument, err)
	}
	size, err := intList(fields["size"])
	if err != nil {
		return nil, fmt.Errorf("%w: size: %v", region.ErrInvalidArgument, err)
	}
	r, err := region.MakeRegion(origin, size)
	if err != nil {
		return nil, err
	}

	expr := fields["expr"].GetStringValue()
	if len(expr) == 0 {
		return nil, fmt.Errorf("%w: request has no expression", region.ErrInvalidArgument)
	}
	return &Request{Region: r, Expression: expr, NoData: fields["nodata"].GetNumberValue()}, nil
}

func intList(v *structpb.Value) ([]int, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("missing list")
	}
	out := make([]int, len(list.GetValues()))
	for i, item := range list.GetValues() {
		num, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		if num.NumberValue != math.Trunc(num.NumberValue) {
			return nil, fmt.Errorf("element %d is not an integer: %v", i, num.NumberValue)
		}
		out[i] = int(num.NumberValue)
	}
	return out, nil
}
