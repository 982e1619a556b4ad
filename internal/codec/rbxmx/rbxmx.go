// Package rbxmx decodes XML model and place documents.
package rbxmx

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/snapshot"
)

var ErrNotModel = errors.New("rbxmx: document root is not <roblox>")

type document struct {
	XMLName xml.Name `xml:"roblox"`
	Version string   `xml:"version,attr"`
	Items   []item   `xml:"Item"`
}

type item struct {
	Class      string     `xml:"class,attr"`
	Referent   string     `xml:"referent,attr"`
	Properties properties `xml:"Properties"`
	Items      []item     `xml:"Item"`
}

type properties struct {
	Props []property `xml:",any"`
}

type property struct {
	XMLName xml.Name
	Name    string  `xml:"name,attr"`
	Text    string  `xml:",chardata"`
	Fields  []field `xml:",any"`
}

type field struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

func (p property) field(name string) (string, bool) {
	for _, f := range p.Fields {
		if strings.EqualFold(f.XMLName.Local, name) {
			return strings.TrimSpace(f.Text), true
		}
	}
	return "", false
}

// Decode parses an XML document. The returned instance is a synthetic
// DataModel root whose children are the document's top-level items.
func Decode(data []byte) (*codec.Instance, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		var unexpected xml.UnmarshalError
		if errors.As(err, &unexpected) {
			return nil, ErrNotModel
		}
		return nil, fmt.Errorf("rbxmx: %w", err)
	}

	root := codec.NewRoot()
	for i := range doc.Items {
		in, err := decodeItem(&doc.Items[i])
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, in)
	}
	return root, nil
}

func decodeItem(it *item) (*codec.Instance, error) {
	if it.Class == "" {
		return nil, fmt.Errorf("rbxmx: item %q has no class", it.Referent)
	}
	in := codec.NewInstance(it.Class, it.Class)
	for _, p := range it.Properties.Props {
		v, err := decodeProperty(p)
		if err != nil {
			return nil, fmt.Errorf("rbxmx: %s.%s: %w", it.Class, p.Name, err)
		}
		if v == nil {
			continue
		}
		if p.Name == "Name" {
			if s, ok := v.(snapshot.String); ok {
				in.Name = string(s)
				continue
			}
		}
		in.Properties[p.Name] = v
	}
	for i := range it.Items {
		child, err := decodeItem(&it.Items[i])
		if err != nil {
			return nil, err
		}
		in.Children = append(in.Children, child)
	}
	return in, nil
}

// decodeProperty returns nil, nil for property kinds it does not know.
func decodeProperty(p property) (snapshot.Value, error) {
	text := strings.TrimSpace(p.Text)
	switch strings.ToLower(p.XMLName.Local) {
	case "string", "protectedstring":
		return snapshot.String(p.Text), nil
	case "binarystring":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(p.Text), ""))
		if err != nil {
			return nil, err
		}
		return snapshot.BinaryString(b), nil
	case "content":
		if url, ok := p.field("url"); ok {
			return snapshot.Content(url), nil
		}
		return snapshot.Content(text), nil
	case "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, err
		}
		return snapshot.Bool(b), nil
	case "int":
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, err
		}
		return snapshot.Int32(n), nil
	case "int64":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return snapshot.Int64(n), nil
	case "float":
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, err
		}
		return snapshot.Float32(f), nil
	case "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return snapshot.Float64(f), nil
	case "token":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, err
		}
		return snapshot.Enum(n), nil
	case "vector2":
		c, err := components(p, "X", "Y")
		if err != nil {
			return nil, err
		}
		return snapshot.Vector2{X: c[0], Y: c[1]}, nil
	case "vector3":
		c, err := components(p, "X", "Y", "Z")
		if err != nil {
			return nil, err
		}
		return snapshot.Vector3{X: c[0], Y: c[1], Z: c[2]}, nil
	case "color3":
		c, err := components(p, "R", "G", "B")
		if err != nil {
			return nil, err
		}
		return snapshot.Color3{R: c[0], G: c[1], B: c[2]}, nil
	case "color3uint8":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, err
		}
		return snapshot.Color3{
			R: float32((n>>16)&0xff) / 255,
			G: float32((n>>8)&0xff) / 255,
			B: float32(n&0xff) / 255,
		}, nil
	default:
		return nil, nil
	}
}

func components(p property, names ...string) ([]float32, error) {
	out := make([]float32, len(names))
	for i, n := range names {
		s, ok := p.field(n)
		if !ok {
			return nil, fmt.Errorf("missing component %s", n)
		}
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
