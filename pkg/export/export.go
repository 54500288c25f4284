package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Renderer turns a Dataset into a file body.
type Renderer interface {
	Format() string
	ContentType() string
	Render(data Dataset) ([]byte, error)
}

// ForFormat resolves a renderer by its format name ("csv" or "pdf").
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "csv":
		return NewCSVRenderer(), nil
	case "pdf":
		return NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	return nil
}
