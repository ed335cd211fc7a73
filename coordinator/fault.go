package coordinator

import "strings"

// Fault is an execution error carrying the primary failure plus any
// secondary errors that were suppressed along the way (typically a release
// failure after the run already failed). The primary error always wins;
// suppressed errors are kept for logs and tests.
type Fault struct {
	Primary    error
	Suppressed []error
}

func (f *Fault) Error() string {
	if len(f.Suppressed) == 0 {
		return f.Primary.Error()
	}
	var b strings.Builder
	b.WriteString(f.Primary.Error())
	b.WriteString(" (suppressed:")
	for _, s := range f.Suppressed {
		b.WriteString(" ")
		b.WriteString(s.Error())
		b.WriteString(";")
	}
	b.WriteString(")")
	return b.String()
}

func (f *Fault) Unwrap() error {
	return f.Primary
}

// withSuppressed attaches a secondary error to err without displacing it.
func withSuppressed(err, secondary error) error {
	if f, ok := err.(*Fault); ok {
		f.Suppressed = append(f.Suppressed, secondary)
		return f
	}
	return &Fault{Primary: err, Suppressed: []error{secondary}}
}
