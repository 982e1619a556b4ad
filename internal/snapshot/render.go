package snapshot

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Render writes a deterministic, indented description of the tree rooted
// at s. Property keys are sorted; children keep their order.
func Render(w io.Writer, s *InstanceSnapshot) error {
	var b strings.Builder
	render(&b, s, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func render(b *strings.Builder, s *InstanceSnapshot, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s %q", indent, s.ClassName, s.Name)
	if s.Metadata.InstigatingSource != "" {
		fmt.Fprintf(b, " <- %s", s.Metadata.InstigatingSource)
	}
	if s.Metadata.Declared {
		b.WriteString(" [declared]")
	}
	b.WriteByte('\n')
	if len(s.Metadata.RelevantPaths) > 0 {
		fmt.Fprintf(b, "%s  # %s\n", indent, strings.Join(s.Metadata.RelevantPaths, ", "))
	}

	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := s.Properties[k]
		fmt.Fprintf(b, "%s  .%s: %s = %s\n", indent, k, v.Type(), FormatValue(v))
	}
	for i := range s.Children {
		render(b, &s.Children[i], depth+1)
	}
}
