package render

import (
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

type Renderer[T any] interface {
	Render(result T) error
}

var (
	_ Renderer[*usecase.ReleaseResult]     = (*ReleaseRenderer)(nil)
	_ Renderer[*usecase.ReleaseListResult] = (*ReleasesRenderer)(nil)
	_ Renderer[*usecase.FingerprintResult] = (*FingerprintRenderer)(nil)
)
