package mock

import (
	"context"

	"github.com/fwojciec/newstext"
)

var _ newstext.Strategy = (*Strategy)(nil)

// Strategy is a mock implementation of newstext.Strategy.
type Strategy struct {
	MethodFn      func() newstext.Method
	ExtractTextFn func(ctx context.Context, url string) (string, error)
}

func (s *Strategy) Method() newstext.Method {
	return s.MethodFn()
}

func (s *Strategy) ExtractText(ctx context.Context, url string) (string, error) {
	return s.ExtractTextFn(ctx, url)
}
