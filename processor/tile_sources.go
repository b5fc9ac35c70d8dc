package processor

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/gstream/region"
)

// ConstantSource fills every requested sub-region with Value.
type ConstantSource struct {
	Full   region.Region
	Value  float32
	NoData float64
}

func (s *ConstantSource) FullRegion() region.Region {
	return s.Full
}

func (s *ConstantSource) ComputeRegion(ctx context.Context, r region.Region) (*Tile, error) {
	if !region.Contains(s.Full, r) {
		return nil, fmt.Errorf("%w: %v is outside %v", region.ErrInvalidArgument, r, s.Full)
	}
	t := NewTile(r, s.NoData)
	for i := range t.Data {
		t.Data[i] = s.Value
	}
	return t, nil
}

var axisVariables = []string{"x", "y", "z"}

// ParsePixelExpression compiles a pixel expression and checks it only
// refers to the axis variables of a region with dim axes.
func ParsePixelExpression(expression string, dim int) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(expression)) == 0 {
		return nil, fmt.Errorf("%w: empty pixel expression", region.ErrInvalidArgument)
	}
	if dim < 1 || dim > len(axisVariables) {
		return nil, fmt.Errorf("%w: pixel expressions support 1 to %d axes, got %d", region.ErrInvalidArgument, len(axisVariables), dim)
	}

	expr, err := goeval.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", region.ErrInvalidArgument, err)
	}

	validVariables := make(map[string]struct{})
	for _, v := range axisVariables[:dim] {
		validVariables[v] = struct{}{}
	}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("%w: variable %v is not supported. Valid variables are %v", region.ErrInvalidArgument, varName, axisVariables[:dim])
			}
		}
	}
	return expr, nil
}

// ExprSource evaluates an expression of the pixel coordinates for every
// pixel of a sub-region. Lines of the sub-region are evaluated in parallel.
type ExprSource struct {
	Full        region.Region
	Expression  string
	NoData      float64
	Concurrency int

	expr *goeval.EvaluableExpression
}

func NewExprSource(full region.Region, expression string, noData float64, concurrency int) (*ExprSource, error) {
	expr, err := ParsePixelExpression(expression, full.Dim())
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &ExprSource{
		Full:        full.Clone(),
		Expression:  expression,
		NoData:      noData,
		Concurrency: concurrency,
		expr:        expr,
	}, nil
}

func (s *ExprSource) FullRegion() region.Region {
	return s.Full
}

func (s *ExprSource) ComputeRegion(ctx context.Context, r region.Region) (*Tile, error) {
	if !region.Contains(s.Full, r) {
		return nil, fmt.Errorf("%w: %v is outside %v", region.ErrInvalidArgument, r, s.Full)
	}

	t := NewTile(r, s.NoData)
	if r.IsNull() {
		return t, nil
	}

	width := r.Size[0]
	lines := len(t.Data) / width

	var errOnce sync.Once
	var firstErr error
	setErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	cLimiter := NewConcLimiter(s.Concurrency)
	cLimiter.ForEach(lines, func(line int) {
		select {
		case <-ctx.Done():
			setErr(ctx.Err())
			return
		default:
		}

		params := make(map[string]interface{}, r.Dim())
		// coordinates of the first pixel of this line; the evaluator works in float32
		rest := line
		for d := 1; d < r.Dim(); d++ {
			params[axisVariables[d]] = float32(r.Origin[d] + rest%r.Size[d])
			rest /= r.Size[d]
		}

		offset := line * width
		for i := 0; i < width; i++ {
			params["x"] = float32(r.Origin[0] + i)
			v, err := s.expr.Evaluate(params)
			if err != nil {
				setErr(fmt.Errorf("pixel expression %q: %v", s.Expression, err))
				return
			}
			val, err := toFloat32(v)
			if err != nil {
				setErr(err)
				return
			}
			t.Data[offset+i] = val
		}
	})

	if firstErr != nil {
		return nil, firstErr
	}
	return t, nil
}

func toFloat32(v interface{}) (float32, error) {
	switch val := v.(type) {
	case float32:
		return val, nil
	case float64:
		return float32(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("pixel expression returned %T, expected a number", v)
	}
}
