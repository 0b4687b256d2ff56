package docxhost

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docpane/internal/host"
	"github.com/fumiama/go-docx"
)

var namedColors = map[string]string{
	"black":  "000000",
	"white":  "FFFFFF",
	"red":    "FF0000",
	"green":  "008000",
	"blue":   "0000FF",
	"yellow": "FFFF00",
	"orange": "FFA500",
	"purple": "800080",
	"pink":   "FFC0CB",
	"gray":   "808080",
	"grey":   "808080",
}

var hexColor = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// colorVal converts a color name or #RRGGBB value to the w:color form.
func colorVal(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("color must be a string, got %T", v)
	}
	s = strings.TrimSpace(s)
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		return hex, nil
	}
	if !hexColor.MatchString(s) {
		return "", fmt.Errorf("unknown color %q", s)
	}
	return strings.ToUpper(strings.TrimPrefix(s, "#")), nil
}

// halfPoints converts a point size to the w:sz form.
func halfPoints(v any) (string, error) {
	var pt float64
	switch x := v.(type) {
	case float64:
		pt = x
	case float32:
		pt = float64(x)
	case int:
		pt = float64(x)
	case int64:
		pt = float64(x)
	default:
		return "", fmt.Errorf("font size must be a number, got %T", v)
	}
	if pt <= 0 || math.IsNaN(pt) || math.IsInf(pt, 0) {
		return "", fmt.Errorf("font size must be positive, got %v", pt)
	}
	return strconv.Itoa(int(math.Round(pt * 2))), nil
}

var alignments = map[string]string{
	host.AlignLeft:      "left",
	host.AlignCentered:  "center",
	host.AlignRight:     "right",
	host.AlignJustified: "both",
}

func justification(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("alignment must be a string, got %T", v)
	}
	for name, jc := range alignments {
		if strings.EqualFold(name, s) {
			return jc, nil
		}
	}
	return "", fmt.Errorf("unknown alignment %q", s)
}

func alignmentName(p *docx.Paragraph) string {
	if p.Properties == nil || p.Properties.Justification == nil {
		return host.AlignLeft
	}
	switch p.Properties.Justification.Val {
	case "center":
		return host.AlignCentered
	case "right", "end":
		return host.AlignRight
	case "both", "distribute":
		return host.AlignJustified
	}
	return host.AlignLeft
}

// fontSetter returns a function applying one font property to a run.
func fontSetter(prop string, v any) (func(*docx.RunProperties), error) {
	switch prop {
	case host.PropFontColor:
		val, err := colorVal(v)
		if err != nil {
			return nil, err
		}
		return func(rp *docx.RunProperties) { rp.Color = &docx.Color{Val: val} }, nil
	case host.PropFontSize:
		val, err := halfPoints(v)
		if err != nil {
			return nil, err
		}
		return func(rp *docx.RunProperties) {
			rp.Size = &docx.Size{Val: val}
			rp.SizeCs = &docx.SizeCs{Val: val}
		}, nil
	case host.PropFontBold, host.PropFontItalic:
		on, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s must be a bool, got %T", prop, v)
		}
		if prop == host.PropFontBold {
			return func(rp *docx.RunProperties) {
				rp.Bold = nil
				if on {
					rp.Bold = &docx.Bold{}
				}
			}, nil
		}
		return func(rp *docx.RunProperties) {
			rp.Italic = nil
			if on {
				rp.Italic = &docx.Italic{}
			}
		}, nil
	}
	return nil, fmt.Errorf("%s is not a font property", prop)
}

// runProps returns the properties of every run under the given nodes,
// allocating them where missing.
func runProps(nodes []any) []*docx.RunProperties {
	return collectProps(nodes, true)
}

// readProps is runProps without touching the document; runs with no
// properties report an empty set.
func readProps(nodes []any) []*docx.RunProperties {
	return collectProps(nodes, false)
}

func collectProps(nodes []any, attach bool) []*docx.RunProperties {
	var out []*docx.RunProperties
	add := func(r *docx.Run) {
		rp := r.RunProperties
		if rp == nil {
			rp = &docx.RunProperties{}
			if attach {
				r.RunProperties = rp
			}
		}
		out = append(out, rp)
	}
	for _, n := range nodes {
		switch x := n.(type) {
		case *docx.Run:
			add(x)
		case *docx.Hyperlink:
			add(&x.Run)
		}
	}
	return out
}

// fontValue reads prop from the first run; bold and italic report true only
// when every run carries them.
func fontValue(prop string, props []*docx.RunProperties) any {
	switch prop {
	case host.PropFontColor:
		for _, rp := range props {
			if rp.Color != nil && rp.Color.Val != "" && rp.Color.Val != "auto" {
				return "#" + rp.Color.Val
			}
		}
		return ""
	case host.PropFontSize:
		for _, rp := range props {
			if rp.Size != nil {
				if hp, err := strconv.ParseFloat(rp.Size.Val, 64); err == nil {
					return hp / 2
				}
			}
		}
		return float64(0)
	case host.PropFontBold:
		if len(props) == 0 {
			return false
		}
		for _, rp := range props {
			if rp.Bold == nil {
				return false
			}
		}
		return true
	case host.PropFontItalic:
		if len(props) == 0 {
			return false
		}
		for _, rp := range props {
			if rp.Italic == nil {
				return false
			}
		}
		return true
	}
	return nil
}
