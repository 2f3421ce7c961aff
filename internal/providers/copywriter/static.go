package copywriter

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const refineMark = "✨"

// Static answers from fixed phrases.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return StaticProviderName }

// GenerateCopy returns the request's template defaults when present and the
// stock product lines otherwise.
func (s *Static) GenerateCopy(ctx context.Context, req CopyRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := req.count()
	if len(req.Defaults) > 0 {
		out := make([]string, n)
		for i := range out {
			out[i] = req.Defaults[i%len(req.Defaults)]
		}
		return out, nil
	}
	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		name = "Product"
	}
	name = cases.Title(language.Und, cases.NoLower).String(name)
	stock := []string{
		fmt.Sprintf("Upgrade your style with %s", name),
		fmt.Sprintf("Experience the best of %s", name),
		fmt.Sprintf("%s: Simply amazing", name),
	}
	out := make([]string, n)
	for i := range out {
		out[i] = stock[i%len(stock)]
	}
	return out, nil
}

// Refine marks the line as refined.
func (s *Static) Refine(ctx context.Context, req RefineRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(req.Copy) + " " + refineMark, nil
}

var _ Copywriter = (*Static)(nil)
